package routing

import (
	"context"

	"github.com/2389/rendezvous-mcp/internal/l402"
)

// Observers fans out notifications to several observers.
type Observers []Observer

// ChallengeIssued implements Observer.
func (obs Observers) ChallengeIssued(ctx context.Context, op string, c l402.PaymentChallenge) {
	for _, o := range obs {
		o.ChallengeIssued(ctx, op, c)
	}
}

// UpstreamFailed implements Observer.
func (obs Observers) UpstreamFailed(ctx context.Context, op string, err error) {
	for _, o := range obs {
		o.UpstreamFailed(ctx, op, err)
	}
}
