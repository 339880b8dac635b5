package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/five82/ubike/internal/query"
	"github.com/five82/ubike/internal/state"
	"github.com/five82/ubike/internal/youbike"
)

const maxBodyBytes = 16 << 10

type handler struct {
	engine   Engine
	settings Settings
	themes   []string
}

type searchRequest struct {
	Query string `json:"query"`
}

type nearbyRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type toggleResponse struct {
	StationNo  string         `json:"station_no"`
	IsFavorite bool           `json:"is_favorite"`
	State      state.Snapshot `json:"state"`
}

// settingsBody is both the GET response and the PUT request. Omitted fields
// are left unchanged on PUT.
type settingsBody struct {
	RefreshIntervalSeconds *int    `json:"refresh_interval_seconds"`
	Theme                  *string `json:"theme"`
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.engine.Snapshot())
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	h.respond(w, r, h.engine.Search(r.Context(), req.Query))
}

func (h *handler) refreshSearch(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	if !snap.IsSearching {
		writeError(w, r, http.StatusConflict, "no active search")
		return
	}
	h.respond(w, r, h.engine.RefreshSearch(r.Context(), snap.CurrentQuery))
}

func (h *handler) clearSearch(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearSearch()
	writeJSON(w, r, http.StatusOK, h.engine.Snapshot())
}

func (h *handler) refreshFavorites(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.engine.RefreshFavorites(r.Context()))
}

func (h *handler) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	stationNo := strings.TrimSpace(chi.URLParam(r, "stationNo"))
	station, err := h.engine.LookupStation(r.Context(), stationNo)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	added, err := h.engine.ToggleFavorite(r.Context(), station)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toggleResponse{
		StationNo:  station.StationNo,
		IsFavorite: added,
		State:      h.engine.Snapshot(),
	})
}

func (h *handler) nearby(w http.ResponseWriter, r *http.Request) {
	var req nearbyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, r, http.StatusBadRequest, "lat and lng are required")
		return
	}
	h.respond(w, r, h.engine.FindNearby(r.Context(), state.Location{Lat: *req.Lat, Lng: *req.Lng}))
}

func (h *handler) refreshNearby(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.engine.RefreshNearby(r.Context()))
}

func (h *handler) clearToast(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearToast()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.currentSettings())
}

func (h *handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsBody
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if n := req.RefreshIntervalSeconds; n != nil && *n < 0 {
		writeError(w, r, http.StatusBadRequest, "refresh_interval_seconds must not be negative")
		return
	}
	if name := req.Theme; name != nil && len(h.themes) > 0 && !slices.Contains(h.themes, *name) {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown theme %q", *name))
		return
	}

	if n := req.RefreshIntervalSeconds; n != nil {
		if err := h.settings.SetRefreshIntervalSeconds(*n); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if name := req.Theme; name != nil {
		if err := h.settings.SetTheme(*name); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, h.currentSettings())
}

func (h *handler) currentSettings() settingsBody {
	interval := h.settings.RefreshIntervalSeconds()
	theme := h.settings.Theme()
	return settingsBody{RefreshIntervalSeconds: &interval, Theme: &theme}
}

// respond writes the snapshot after a successful operation, or the error.
func (h *handler) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.engine.Snapshot())
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, statusFor(err), err.Error())
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, query.ErrInvalidLocation):
		return http.StatusBadRequest
	case errors.Is(err, query.ErrStationNotFound):
		return http.StatusNotFound
	case errors.Is(err, query.ErrNoLocation), errors.Is(err, context.Canceled):
		// A cancelled operation was superseded by a newer one.
		return http.StatusConflict
	case errors.Is(err, youbike.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case youbike.IsNetworkError(err), youbike.IsDecodeError(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorBody{Error: msg, RequestID: chimiddleware.GetReqID(r.Context())})
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
}
