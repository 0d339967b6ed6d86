// ABOUTME: Rendezvous tool pack: routing and fairness tools for agents.
// ABOUTME: Tools run against the calling session's gateway and credential store.

package rendezvous

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/2389/rendezvous-mcp/internal/l402"
	"github.com/2389/rendezvous-mcp/internal/ledger"
	"github.com/2389/rendezvous-mcp/internal/session"
	"github.com/2389/rendezvous-mcp/internal/tools"
)

// PackID identifies the rendezvous pack in the registry.
const PackID = "rendezvous"

// Tool names.
const (
	ToolGetDirections    = "get_directions"
	ToolGetIsochrone     = "get_isochrone"
	ToolScoreVenues      = "score_venues"
	ToolStoreCredentials = "store_routing_credentials"
)

// ErrNoSession is returned when a tool is called outside a session.
var ErrNoSession = errors.New("no session")

// Config holds dependencies for the pack.
type Config struct {
	// Ledger records credential events. Optional.
	Ledger ledger.Ledger
	Logger *slog.Logger
}

type handlers struct {
	ledger ledger.Ledger
	logger *slog.Logger
}

// NewPack creates the rendezvous tool pack.
func NewPack(cfg Config) *tools.Pack {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{ledger: cfg.Ledger, logger: logger.With("pack", PackID)}

	return &tools.Pack{
		ID: PackID,
		Tools: []*tools.Tool{
			{
				Definition: tools.Definition{
					Name: ToolGetDirections,
					Description: "Get directions between two points with distance, duration, and turn-by-turn steps. " +
						"Returns a GeoJSON LineString of the route geometry.",
					InputSchema: json.RawMessage(directionsSchema),
				},
				Handler: h.GetDirections,
			},
			{
				Definition: tools.Definition{
					Name: ToolGetIsochrone,
					Description: "Get a reachability polygon showing everywhere reachable from a point within a given travel time. " +
						"Returns a GeoJSON polygon. Useful for understanding how far someone can travel.",
					InputSchema: json.RawMessage(isochroneSchema),
				},
				Handler: h.GetIsochrone,
			},
			{
				Definition: tools.Definition{
					Name: ToolScoreVenues,
					Description: "Score candidate venues by travel time fairness for multiple participants. " +
						"Computes travel times from each participant to each venue and ranks by fairness strategy. " +
						"Suggest candidate venues from your own knowledge and pass them here for scoring.",
					InputSchema: json.RawMessage(scoreVenuesSchema),
				},
				Handler: h.ScoreVenues,
			},
			{
				Definition: tools.Definition{
					Name: ToolStoreCredentials,
					Description: "Store L402 payment credentials (macaroon + preimage) after paying a routing invoice. " +
						"Call this after the user has paid the Lightning invoice returned by a payment_required response. " +
						"Once stored, subsequent routing calls (score_venues, get_isochrone, get_directions) " +
						"will authenticate automatically.",
					InputSchema: json.RawMessage(storeCredentialsSchema),
				},
				Handler: h.StoreCredentials,
			},
		},
	}
}

// paymentRequiredOutput is returned by routing tools when the backend asks
// for payment.
type paymentRequiredOutput struct {
	Success     bool   `json:"success"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	Invoice     string `json:"invoice"`
	Macaroon    string `json:"macaroon"`
	PaymentHash string `json:"payment_hash"`
	PaymentURL  string `json:"payment_url"`
	AmountSats  int64  `json:"amount_sats"`
}

func paymentRequired(c *l402.PaymentChallenge) (json.RawMessage, error) {
	return json.Marshal(paymentRequiredOutput{
		Success:     false,
		Status:      c.Status,
		Message:     c.Message,
		Invoice:     c.Invoice,
		Macaroon:    c.Macaroon,
		PaymentHash: c.PaymentHash,
		PaymentURL:  c.PaymentURL,
		AmountSats:  c.AmountSats,
	})
}

func requireSession(sess *session.Session) error {
	if sess == nil || sess.Gateway == nil {
		return ErrNoSession
	}
	return nil
}

func upstreamError(err error) error {
	return fmt.Errorf("routing backend request failed: %w", err)
}

func round(x float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(x*p) / p
}
