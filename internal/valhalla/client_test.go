// ABOUTME: Tests for the Valhalla client against an httptest backend.
// ABOUTME: Covers request encoding, auth propagation, decoding, and error mapping.

package valhalla

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/rendezvous-mcp/internal/routing"
)

// capturedRequest holds what the fake backend received.
type capturedRequest struct {
	Path          string
	Authorization string
	ContentType   string
	Body          map[string]any
}

func newTestBackend(t *testing.T, status int, response string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			captured.Path = r.URL.Path
			captured.Authorization = r.Header.Get("Authorization")
			captured.ContentType = r.Header.Get("Content-Type")
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &captured.Body)
		}
		if status == http.StatusPaymentRequired {
			w.Header().Set("WWW-Authenticate", `L402 macaroon="m", invoice="i"`)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)

	c = New(Config{BaseURL: "http://localhost:8002/"})
	assert.Equal(t, "http://localhost:8002", c.BaseURL())
}

func TestClient_Route(t *testing.T) {
	shape := encodePolyline([][2]float64{{-0.1, 51.5}, {-0.2, 51.6}}, 6)
	// Marshal so backslashes in the encoded shape are escaped.
	response, err := json.Marshal(map[string]any{
		"trip": map[string]any{
			"legs": []any{map[string]any{
				"maneuvers": []any{
					map[string]any{"instruction": "Head north", "length": 0.5, "time": 60},
					map[string]any{"instruction": "Arrive", "length": 0, "time": 0},
				},
				"shape": shape,
			}},
			"summary": map[string]any{"length": 1.234, "time": 300},
		},
	})
	require.NoError(t, err)

	var captured capturedRequest
	ts := newTestBackend(t, http.StatusOK, string(response), &captured)
	c := New(Config{BaseURL: ts.URL})

	ctx := routing.WithAuthorization(context.Background(), "L402 mac:pre")
	route, err := c.Route(ctx, routing.LatLon{Lat: 51.5, Lon: -0.1}, routing.LatLon{Lat: 51.6, Lon: -0.2}, routing.ModeCycle)
	require.NoError(t, err)

	assert.Equal(t, "/route", captured.Path)
	assert.Equal(t, "L402 mac:pre", captured.Authorization)
	assert.Equal(t, "application/json", captured.ContentType)
	assert.Equal(t, "bicycle", captured.Body["costing"])

	assert.Equal(t, 1.234, route.DistanceKm)
	assert.Equal(t, 5.0, route.DurationMinutes)
	require.Len(t, route.Legs, 2)
	assert.Equal(t, "Head north", route.Legs[0].Instruction)
	assert.Equal(t, 1.0, route.Legs[0].DurationMinutes)

	var line struct {
		Type        string       `json:"type"`
		Coordinates [][2]float64 `json:"coordinates"`
	}
	require.NoError(t, json.Unmarshal(route.Geometry, &line))
	assert.Equal(t, "LineString", line.Type)
	require.Len(t, line.Coordinates, 2)
	assert.InDelta(t, -0.2, line.Coordinates[1][0], 1e-6)
}

func TestClient_NoAuthorizationWithoutCredentials(t *testing.T) {
	var captured capturedRequest
	ts := newTestBackend(t, http.StatusOK, `{"trip":{"legs":[],"summary":{"length":0,"time":0}}}`, &captured)
	c := New(Config{BaseURL: ts.URL})

	_, err := c.Route(context.Background(), routing.LatLon{}, routing.LatLon{}, routing.ModeDrive)
	require.NoError(t, err)
	assert.Empty(t, captured.Authorization)
	assert.Equal(t, "auto", captured.Body["costing"])
}

func TestClient_Isochrone(t *testing.T) {
	response := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"contour":15},
		"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`
	var captured capturedRequest
	ts := newTestBackend(t, http.StatusOK, response, &captured)
	c := New(Config{BaseURL: ts.URL})

	iso, err := c.Isochrone(context.Background(), routing.LatLon{Lat: 1, Lon: 2}, routing.ModeWalk, 15)
	require.NoError(t, err)

	assert.Equal(t, "/isochrone", captured.Path)
	assert.Equal(t, "pedestrian", captured.Body["costing"])
	assert.Equal(t, true, captured.Body["polygons"])
	assert.Equal(t, 15.0, iso.TimeMinutes)
	assert.Equal(t, routing.ModeWalk, iso.Mode)
	assert.JSONEq(t, `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`, string(iso.Polygon))
}

func TestClient_IsochroneWithoutFeatures(t *testing.T) {
	ts := newTestBackend(t, http.StatusOK, `{"features":[]}`, nil)
	c := New(Config{BaseURL: ts.URL})

	_, err := c.Isochrone(context.Background(), routing.LatLon{}, routing.ModeWalk, 15)
	assert.Error(t, err)
}

func TestClient_Matrix(t *testing.T) {
	response := `{"sources_to_targets":[
		[{"distance":1.5,"time":600,"from_index":0,"to_index":0},{"distance":null,"time":null,"from_index":0,"to_index":1}],
		[{"distance":2.0,"time":780,"from_index":1,"to_index":0},{"distance":3.0,"time":900,"from_index":1,"to_index":1}]
	]}`
	var captured capturedRequest
	ts := newTestBackend(t, http.StatusOK, response, &captured)
	c := New(Config{BaseURL: ts.URL})

	origins := []routing.LatLon{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}
	destinations := []routing.LatLon{{Lat: 3, Lon: 3}, {Lat: 4, Lon: 4}}
	m, err := c.Matrix(context.Background(), origins, destinations, routing.ModeDrive)
	require.NoError(t, err)

	assert.Equal(t, "/sources_to_targets", captured.Path)
	assert.Len(t, captured.Body["sources"], 2)
	assert.Len(t, m.Entries, 4)

	e, ok := m.Lookup(0, 0)
	require.True(t, ok)
	assert.Equal(t, 10.0, e.DurationMinutes)
	assert.Equal(t, 1.5, e.DistanceKm)

	e, ok = m.Lookup(0, 1)
	require.True(t, ok)
	assert.False(t, e.Reachable())

	e, ok = m.Lookup(1, 0)
	require.True(t, ok)
	assert.Equal(t, 13.0, e.DurationMinutes)
}

func TestClient_ErrorStatus(t *testing.T) {
	t.Run("402 keeps body and headers", func(t *testing.T) {
		ts := newTestBackend(t, http.StatusPaymentRequired, `{"invoice":"lnbc1"}`, nil)
		c := New(Config{BaseURL: ts.URL})

		_, err := c.Route(context.Background(), routing.LatLon{}, routing.LatLon{}, routing.ModeDrive)
		var be *routing.BackendError
		require.True(t, errors.As(err, &be))
		assert.True(t, be.PaymentRequired())
		assert.JSONEq(t, `{"invoice":"lnbc1"}`, string(be.Body))
		assert.Equal(t, `L402 macaroon="m", invoice="i"`, be.Header.Get("WWW-Authenticate"))
	})

	t.Run("500 is a backend error", func(t *testing.T) {
		ts := newTestBackend(t, http.StatusInternalServerError, `{"error":"boom"}`, nil)
		c := New(Config{BaseURL: ts.URL})

		_, err := c.Matrix(context.Background(), nil, nil, routing.ModeDrive)
		var be *routing.BackendError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, http.StatusInternalServerError, be.StatusCode)
		assert.False(t, be.PaymentRequired())
	})

	t.Run("invalid JSON on success", func(t *testing.T) {
		ts := newTestBackend(t, http.StatusOK, `not json`, nil)
		c := New(Config{BaseURL: ts.URL})

		_, err := c.Route(context.Background(), routing.LatLon{}, routing.LatLon{}, routing.ModeDrive)
		require.Error(t, err)
		var be *routing.BackendError
		assert.False(t, errors.As(err, &be))
	})
}
