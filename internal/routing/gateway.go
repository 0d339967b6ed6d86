// ABOUTME: Authorizing gateway between routing tools and the metered backend.
// ABOUTME: Replays stored L402 credentials and turns 402s into tagged results.

package routing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/2389/rendezvous-mcp/internal/l402"
)

// Backend computes routes, isochrones, and travel-time matrices.
// Non-2xx responses are reported as *BackendError.
type Backend interface {
	Route(ctx context.Context, origin, destination LatLon, mode Mode) (*RouteGeometry, error)
	Isochrone(ctx context.Context, origin LatLon, mode Mode, minutes float64) (*Isochrone, error)
	Matrix(ctx context.Context, origins, destinations []LatLon, mode Mode) (*TravelTimeMatrix, error)
}

// Status discriminates gateway results.
type Status string

// Result statuses.
const (
	StatusOK              Status = "ok"
	StatusPaymentRequired Status = l402.StatusPaymentRequired
)

// Operation names reported to observers and logs.
const (
	OpRoute     = "route"
	OpIsochrone = "isochrone"
	OpMatrix    = "matrix"
)

// Result is either a domain value (StatusOK) or a payment challenge
// (StatusPaymentRequired).
type Result[T any] struct {
	Status    Status
	Value     T
	Challenge *l402.PaymentChallenge
}

// PaymentRequired reports whether the result carries a challenge.
func (r Result[T]) PaymentRequired() bool {
	return r.Status == StatusPaymentRequired
}

// Observer is notified of challenges and upstream failures.
type Observer interface {
	ChallengeIssued(ctx context.Context, op string, c l402.PaymentChallenge)
	UpstreamFailed(ctx context.Context, op string, err error)
}

// GatewayConfig holds configuration for a Gateway.
type GatewayConfig struct {
	Backend     Backend
	Credentials *l402.CredentialStore
	// BaseURL is the backend base URL used to build invoice polling URLs.
	BaseURL string
	// LegacyHeaderChallenges prefers a WWW-Authenticate challenge over the
	// JSON body when both are present.
	LegacyHeaderChallenges bool
	Observer               Observer
	Logger                 *slog.Logger
}

// Gateway attaches credentials to backend calls and normalizes 402s.
type Gateway struct {
	backend      Backend
	credentials  *l402.CredentialStore
	baseURL      string
	legacyHeader bool
	observer     Observer
	logger       *slog.Logger
}

// NewGateway creates a gateway. A nil credential store is replaced by an
// empty one.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}

	creds := cfg.Credentials
	if creds == nil {
		creds = l402.NewCredentialStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		backend:      cfg.Backend,
		credentials:  creds,
		baseURL:      cfg.BaseURL,
		legacyHeader: cfg.LegacyHeaderChallenges,
		observer:     cfg.Observer,
		logger:       logger,
	}, nil
}

// Credentials returns the store whose credential is replayed on every call.
func (g *Gateway) Credentials() *l402.CredentialStore {
	return g.credentials
}

// Route computes a route between two points.
func (g *Gateway) Route(ctx context.Context, origin, destination LatLon, mode Mode) (Result[*RouteGeometry], error) {
	return call(ctx, g, OpRoute, func(ctx context.Context) (*RouteGeometry, error) {
		return g.backend.Route(ctx, origin, destination, mode)
	})
}

// Isochrone computes the area reachable from origin within minutes.
func (g *Gateway) Isochrone(ctx context.Context, origin LatLon, mode Mode, minutes float64) (Result[*Isochrone], error) {
	return call(ctx, g, OpIsochrone, func(ctx context.Context) (*Isochrone, error) {
		return g.backend.Isochrone(ctx, origin, mode, minutes)
	})
}

// Matrix computes pairwise travel times from origins to destinations.
func (g *Gateway) Matrix(ctx context.Context, origins, destinations []LatLon, mode Mode) (Result[*TravelTimeMatrix], error) {
	return call(ctx, g, OpMatrix, func(ctx context.Context) (*TravelTimeMatrix, error) {
		return g.backend.Matrix(ctx, origins, destinations, mode)
	})
}

// call runs one backend operation with credentials attached and converts a
// 402 into a challenge result. Any other error is returned as is.
func call[T any](ctx context.Context, g *Gateway, op string, fn func(context.Context) (T, error)) (Result[T], error) {
	if auth, ok := g.credentials.AuthHeaderValue(); ok {
		ctx = WithAuthorization(ctx, auth)
	}

	value, err := fn(ctx)
	if err == nil {
		return Result[T]{Status: StatusOK, Value: value}, nil
	}

	var be *BackendError
	if !errors.As(err, &be) || !be.PaymentRequired() {
		g.logger.Warn("routing backend call failed", "operation", op, "error", err)
		if g.observer != nil {
			g.observer.UpstreamFailed(ctx, op, err)
		}
		return Result[T]{}, err
	}

	challenge := g.challengeFrom(be)
	g.logger.Info("routing backend requires payment",
		"operation", op,
		"payment_hash", challenge.PaymentHash,
		"amount_sats", challenge.AmountSats,
		"degraded", challenge.Degraded,
	)
	if g.observer != nil {
		g.observer.ChallengeIssued(ctx, op, challenge)
	}
	return Result[T]{Status: StatusPaymentRequired, Challenge: &challenge}, nil
}

func (g *Gateway) challengeFrom(be *BackendError) l402.PaymentChallenge {
	if g.legacyHeader && be.Header != nil {
		for _, h := range be.Header.Values("WWW-Authenticate") {
			if c, ok := l402.ParseHeader(h, g.baseURL); ok {
				return c.MergeBody(be.Body, g.baseURL)
			}
		}
	}
	return l402.ParseBody(be.Body, g.baseURL)
}
