package youbike_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/ubike/internal/youbike"
)

func newTestClient(t *testing.T, url string) *youbike.Client {
	t.Helper()
	c, err := youbike.NewClient(youbike.ClientConfig{
		BaseURL: url,
		Timeout: 2 * time.Second,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return c
}

func TestClient_ListAllStations(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/json/station-min-yb2.json", r.URL.Path)
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"station_no":"500101001","name_tw":"捷運科技大樓站","district_tw":"大安區","address_tw":"復興南路二段235號前","lat":25.02605,"lng":121.5436,"extra_field":"ignored"},
			{"station_no":"500101002","name_tw":"復興南路二段273號前","district_tw":"大安區","address_tw":"復興南路二段273號西側","lat":25.02565,"lng":121.54357}
		]`))
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	stations, err := c.ListAllStations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, "500101001", stations[0].StationNo)
	assert.Equal(t, "捷運科技大樓站", stations[0].Name)
	assert.Equal(t, "大安區", stations[0].District)
	assert.InDelta(t, 25.02605, stations[0].Latitude, 1e-9)
	assert.InDelta(t, 121.5436, stations[0].Longitude, 1e-9)
	assert.True(t, strings.HasPrefix(gotUserAgent, "ubike/"), "User-Agent = %q", gotUserAgent)
}

func TestClient_FetchAvailability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tw2/parkingInfo", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			StationNo []string `json:"station_no"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"A", "B"}, body.StationNo)

		_, _ = w.Write([]byte(`{"retVal":{"data":[
			{"station_no":"A","empty_spaces":3,"available_spaces_detail":{"yb2":5,"eyb":1},"forbidden_spaces":0},
			{"station_no":"B","empty_spaces":0,"available_spaces_detail":{"yb2":9,"eyb":2}},
			{"station_no":"A","empty_spaces":99,"available_spaces_detail":{"yb2":99,"eyb":99}}
		]},"retCode":1}`))
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	got, err := c.FetchAvailability(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 3, got["A"].EmptySpaces, "first entry for a repeated id wins")
	assert.Equal(t, 5, got["A"].Detail.Standard)
	assert.Equal(t, 1, got["A"].Detail.Electric)
	assert.Equal(t, 9, got["B"].Detail.Standard)
}

func TestClient_FetchAvailabilityRejectsOversizedBatch(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(server.Close)

	ids := make([]string, youbike.MaxBatchSize+1)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}

	c := newTestClient(t, server.URL)
	_, err := c.FetchAvailability(context.Background(), ids)
	require.Error(t, err)
	assert.ErrorIs(t, err, youbike.ErrBatchTooLarge)
	assert.Zero(t, hits.Load(), "no request should be sent")
}

func TestClient_FetchAvailabilityEmptySkipsRequest(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	got, err := c.FetchAvailability(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, hits.Load())
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json/station-min-yb2.json":
			_, _ = w.Write([]byte("{not-json"))
		case "/tw2/parkingInfo":
			http.Error(w, "nope", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)

	_, err := c.ListAllStations(context.Background())
	require.Error(t, err)
	assert.True(t, youbike.IsDecodeError(err), "want DecodeError, got %v", err)

	_, err = c.FetchAvailability(context.Background(), []string{"A"})
	require.Error(t, err)
	assert.True(t, youbike.IsNetworkError(err), "want NetworkError, got %v", err)

	var netErr *youbike.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusInternalServerError, netErr.StatusCode)
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t, url)
	_, err := c.ListAllStations(context.Background())
	require.Error(t, err)
	assert.True(t, youbike.IsNetworkError(err), "want NetworkError, got %v", err)
}

func TestClient_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	for i := 0; i < 5; i++ {
		_, err := c.ListAllStations(context.Background())
		require.Error(t, err)
	}

	_, err := c.ListAllStations(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, youbike.ErrCircuitOpen)
	assert.True(t, youbike.IsNetworkError(err))
	assert.Equal(t, int32(5), hits.Load(), "open circuit should not reach the server")
}

func TestClient_CancelledRequestsDoNotOpenCircuit(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slow.Load() {
			<-r.Context().Done()
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(10*time.Millisecond, cancel)
		_, err := c.ListAllStations(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, youbike.ErrCircuitOpen)
		cancel()
	}

	slow.Store(false)
	stations, err := c.ListAllStations(context.Background())
	require.NoError(t, err, "cancellations must not trip the breaker")
	assert.Empty(t, stations)
}

func TestNewClient_RejectsHostlessURL(t *testing.T) {
	_, err := youbike.NewClient(youbike.ClientConfig{BaseURL: "http://"})
	require.Error(t, err)
}

func TestStationIDs(t *testing.T) {
	assert.Nil(t, youbike.StationIDs(nil))
	ids := youbike.StationIDs([]youbike.StationInfo{{StationNo: "1"}, {StationNo: "2"}})
	assert.Equal(t, []string{"1", "2"}, ids)
}
