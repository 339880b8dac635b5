package youbike

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// MaxBatchSize is the most station ids the parking-info endpoint accepts.
const MaxBatchSize = 20

const (
	// DefaultBaseURL is the public YouBike API root.
	DefaultBaseURL   = "https://apis.youbike.com.tw/"
	defaultUserAgent = "ubike/0.1"
	requestTimeout   = 10 * time.Second

	rosterPath      = "json/station-min-yb2.json"
	parkingInfoPath = "tw2/parkingInfo"
)

// Directory is the read contract the query engine needs from the API.
type Directory interface {
	ListAllStations(ctx context.Context) ([]StationInfo, error)
	FetchAvailability(ctx context.Context, stationIDs []string) (map[string]VehicleInfo, error)
}

// Ensure Client implements Directory at compile time.
var _ Directory = (*Client)(nil)

// ClientConfig configures a Client. Zero values use defaults.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Logger     zerolog.Logger

	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
}

// Client talks to the YouBike HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	breaker   *gobreaker.CircuitBreaker[[]byte]
	logger    zerolog.Logger
}

// NewClient builds a Client from cfg.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = requestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	logger := cfg.Logger.With().Str("component", "youbike").Logger()

	c := &Client{
		baseURL:   base,
		http:      httpClient,
		userAgent: userAgent,
		logger:    logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:         "youbike-api",
		MaxRequests:  1,
		Timeout:      breakerTimeout,
		ReadyToTrip:  readyToTrip,
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return c, nil
}

// readyToTrip opens the breaker after five consecutive failed requests.
func readyToTrip(counts gobreaker.Counts) bool {
	return counts.ConsecutiveFailures >= 5
}

// isSuccessful treats a request the caller cancelled as a success so that
// superseded searches never count toward tripping the breaker.
func isSuccessful(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// ListAllStations fetches the full station roster.
func (c *Client) ListAllStations(ctx context.Context) ([]StationInfo, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	const op = "list stations"
	body, err := c.do(ctx, op, http.MethodGet, rosterPath, nil)
	if err != nil {
		return nil, err
	}
	var stations []StationInfo
	if err := json.Unmarshal(body, &stations); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	c.logger.Debug().Int("stations", len(stations)).Msg("roster fetched")
	return stations, nil
}

// FetchAvailability fetches live availability for one batch of at most
// MaxBatchSize station ids. Callers batch larger sets themselves.
func (c *Client) FetchAvailability(ctx context.Context, stationIDs []string) (map[string]VehicleInfo, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if len(stationIDs) > MaxBatchSize {
		return nil, fmt.Errorf("fetch availability for %d stations: %w", len(stationIDs), ErrBatchTooLarge)
	}
	if len(stationIDs) == 0 {
		return map[string]VehicleInfo{}, nil
	}

	const op = "fetch availability"
	payload, err := json.Marshal(parkingInfoRequest{StationNo: stationIDs})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	body, err := c.do(ctx, op, http.MethodPost, parkingInfoPath, payload)
	if err != nil {
		return nil, err
	}

	var resp parkingInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}

	out := make(map[string]VehicleInfo, len(resp.RetVal.Data))
	for _, info := range resp.RetVal.Data {
		if _, seen := out[info.StationNo]; seen {
			continue
		}
		out[info.StationNo] = info
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})

	body, err := c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &NetworkError{Op: op, Err: err}
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 {
			return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err)}
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &NetworkError{Op: op, Err: ErrCircuitOpen}
		}
		c.logger.Debug().Err(err).Str("op", op).Msg("request failed")
		return nil, err
	}
	return body, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api base url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api base url %q: missing host", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
