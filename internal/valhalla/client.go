// ABOUTME: HTTP client for a Valhalla-compatible routing backend.
// ABOUTME: Implements routing.Backend; non-2xx responses become routing.BackendError.

package valhalla

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/rendezvous-mcp/internal/routing"
)

// DefaultBaseURL is the public routing service used when none is configured.
const DefaultBaseURL = "https://routing.trotters.cc"

// DefaultTimeout bounds a single backend request.
const DefaultTimeout = 30 * time.Second

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 16 << 20

// Config holds configuration for a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the Valhalla JSON API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Valhalla client.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "rendezvous-mcp"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     logger.With("component", "valhalla"),
	}
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Route computes a route between two points.
func (c *Client) Route(ctx context.Context, origin, destination routing.LatLon, mode routing.Mode) (*routing.RouteGeometry, error) {
	req := routeRequest{
		Locations: []location{toLocation(origin), toLocation(destination)},
		Costing:   costing(mode),
		Units:     "kilometers",
	}

	var resp routeResponse
	if err := c.postJSON(ctx, "/route", req, &resp); err != nil {
		return nil, err
	}
	return resp.toRoute()
}

// Isochrone computes the polygon reachable from origin within minutes.
func (c *Client) Isochrone(ctx context.Context, origin routing.LatLon, mode routing.Mode, minutes float64) (*routing.Isochrone, error) {
	req := isochroneRequest{
		Locations: []location{toLocation(origin)},
		Costing:   costing(mode),
		Contours:  []contour{{Time: minutes}},
		Polygons:  true,
	}

	var resp isochroneResponse
	if err := c.postJSON(ctx, "/isochrone", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Features) == 0 {
		return nil, errors.New("isochrone response contained no features")
	}

	return &routing.Isochrone{
		Origin:      origin,
		Mode:        mode,
		TimeMinutes: minutes,
		Polygon:     resp.Features[0].Geometry,
	}, nil
}

// Matrix computes travel times from every origin to every destination.
// Unreachable pairs carry a negative duration.
func (c *Client) Matrix(ctx context.Context, origins, destinations []routing.LatLon, mode routing.Mode) (*routing.TravelTimeMatrix, error) {
	req := matrixRequest{
		Sources: toLocations(origins),
		Targets: toLocations(destinations),
		Costing: costing(mode),
		Units:   "kilometers",
	}

	var resp matrixResponse
	if err := c.postJSON(ctx, "/sources_to_targets", req, &resp); err != nil {
		return nil, err
	}
	return resp.toMatrix(origins, destinations), nil
}

// postJSON sends body as JSON to path and decodes a 2xx response into result.
func (c *Client) postJSON(ctx context.Context, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if auth, ok := routing.AuthorizationFrom(ctx); ok {
		req.Header.Set("Authorization", auth)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request to %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", path, err)
	}

	c.logger.Debug("backend request",
		"path", path,
		"status", resp.StatusCode,
		"authorized", req.Header.Get("Authorization") != "",
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &routing.BackendError{
			StatusCode: resp.StatusCode,
			Body:       respBody,
			Header:     resp.Header.Clone(),
		}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

// Ensure Client implements routing.Backend.
var _ routing.Backend = (*Client)(nil)
