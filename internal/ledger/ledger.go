// ABOUTME: Ledger interface and record types for payment challenge auditing.
// ABOUTME: Observer records gateway challenges against the calling session.

package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/rendezvous-mcp/internal/l402"
	"github.com/2389/rendezvous-mcp/internal/session"
)

// CredentialEvent is the kind of credential change recorded.
type CredentialEvent string

// Credential events.
const (
	CredentialStored  CredentialEvent = "stored"
	CredentialCleared CredentialEvent = "cleared"
)

// ChallengeRecord is one challenge surfaced to a client.
type ChallengeRecord struct {
	ID          string
	SessionID   string
	Operation   string
	Invoice     string
	PaymentHash string
	AmountSats  int64
	PaymentURL  string
	Degraded    bool
	CreatedAt   time.Time
}

// ChallengeFilter narrows ListChallenges and Stats.
type ChallengeFilter struct {
	SessionID *string
	Since     *time.Time
	Limit     int
}

// ChallengeStats aggregates challenge records.
type ChallengeStats struct {
	Count     int64
	Degraded  int64
	TotalSats int64
}

// Ledger persists challenge and credential audit records.
type Ledger interface {
	RecordChallenge(ctx context.Context, rec *ChallengeRecord) error
	RecordCredentialEvent(ctx context.Context, sessionID string, event CredentialEvent) error
	ListChallenges(ctx context.Context, filter ChallengeFilter) ([]*ChallengeRecord, error)
	Stats(ctx context.Context, filter ChallengeFilter) (*ChallengeStats, error)
	Close() error
}

// NewChallengeRecord builds a record for a challenge issued to a session.
func NewChallengeRecord(sessionID, op string, c l402.PaymentChallenge) *ChallengeRecord {
	return &ChallengeRecord{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Operation:   op,
		Invoice:     c.Invoice,
		PaymentHash: c.PaymentHash,
		AmountSats:  c.AmountSats,
		PaymentURL:  c.PaymentURL,
		Degraded:    c.Degraded,
		CreatedAt:   time.Now().UTC(),
	}
}

// Observer records gateway challenges in a ledger. Write failures are logged
// and never affect the tool result.
type Observer struct {
	Ledger Ledger
	Logger *slog.Logger
}

// ChallengeIssued implements routing.Observer.
func (o *Observer) ChallengeIssued(ctx context.Context, op string, c l402.PaymentChallenge) {
	sessionID := ""
	if sess, ok := session.FromContext(ctx); ok {
		sessionID = sess.ID
	}
	if err := o.Ledger.RecordChallenge(ctx, NewChallengeRecord(sessionID, op, c)); err != nil {
		o.logger().Warn("failed to record payment challenge", "operation", op, "error", err)
	}
}

// UpstreamFailed implements routing.Observer. Failures are not recorded.
func (o *Observer) UpstreamFailed(context.Context, string, error) {}

func (o *Observer) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
