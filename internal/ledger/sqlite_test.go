// ABOUTME: Tests for the SQLite payment ledger.
// ABOUTME: Uses a temp-dir database per test.

package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/rendezvous-mcp/internal/l402"
	"github.com/2389/rendezvous-mcp/internal/session"
)

func newTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func testChallenge(hash string, sats int64) l402.PaymentChallenge {
	return l402.PaymentChallenge{
		Status:      l402.StatusPaymentRequired,
		Invoice:     "lnbc" + hash,
		Macaroon:    "mac",
		PaymentHash: hash,
		PaymentURL:  "http://backend/invoice-status/" + hash,
		AmountSats:  sats,
	}
}

func TestSQLiteLedger_RecordAndList(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	first := NewChallengeRecord("s1", "route", testChallenge("h1", 1000))
	first.CreatedAt = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	second := NewChallengeRecord("s1", "matrix", testChallenge("h2", 250))
	second.CreatedAt = time.Date(2026, 1, 1, 12, 0, 0, 500, time.UTC)
	other := NewChallengeRecord("s2", "isochrone", testChallenge("h3", 10))
	other.Degraded = true
	other.CreatedAt = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	for _, rec := range []*ChallengeRecord{first, second, other} {
		require.NoError(t, l.RecordChallenge(ctx, rec))
	}

	all, err := l.ListChallenges(ctx, ChallengeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, other.ID, all[0].ID, "newest first")
	assert.Equal(t, second.ID, all[1].ID)
	assert.True(t, all[0].Degraded)
	assert.True(t, first.CreatedAt.Equal(all[2].CreatedAt))
	assert.Equal(t, "lnbch1", all[2].Invoice)
	assert.Equal(t, "http://backend/invoice-status/h1", all[2].PaymentURL)

	sid := "s1"
	mine, err := l.ListChallenges(ctx, ChallengeFilter{SessionID: &sid, Limit: 1})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "h2", mine[0].PaymentHash)
}

func TestSQLiteLedger_Stats(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	empty, err := l.Stats(ctx, ChallengeFilter{})
	require.NoError(t, err)
	assert.Equal(t, ChallengeStats{}, *empty)

	old := NewChallengeRecord("s1", "route", testChallenge("h1", 1000))
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	recent := NewChallengeRecord("s1", "route", testChallenge("h2", 500))
	recent.Degraded = true
	require.NoError(t, l.RecordChallenge(ctx, old))
	require.NoError(t, l.RecordChallenge(ctx, recent))

	stats, err := l.Stats(ctx, ChallengeFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, int64(1), stats.Degraded)
	assert.Equal(t, int64(1500), stats.TotalSats)

	since := time.Now().Add(-time.Hour)
	stats, err = l.Stats(ctx, ChallengeFilter{Since: &since})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Count)
	assert.Equal(t, int64(500), stats.TotalSats)
}

func TestSQLiteLedger_CredentialEvents(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordCredentialEvent(ctx, "s1", CredentialStored))
	require.NoError(t, l.RecordCredentialEvent(ctx, "s1", CredentialCleared))
	assert.Error(t, l.RecordCredentialEvent(ctx, "s1", CredentialEvent("leaked")))

	var n int
	require.NoError(t, l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM credential_events").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestSQLiteLedger_NeverStoresSecrets(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.RecordChallenge(ctx, NewChallengeRecord("s1", "route", testChallenge("h1", 1))))

	rows, err := l.db.QueryContext(ctx, "SELECT name FROM pragma_table_info('payment_challenges')")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		cols = append(cols, name)
	}
	require.NoError(t, rows.Err())
	assert.NotContains(t, cols, "macaroon")
	assert.NotContains(t, cols, "preimage")
}

func TestSQLiteLedger_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := NewSQLiteLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.RecordChallenge(context.Background(), NewChallengeRecord("s1", "route", testChallenge("h1", 1))))
	require.NoError(t, l.Close())

	l, err = NewSQLiteLedger(path)
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	stats, err := l.Stats(context.Background(), ChallengeFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Count)
}

func TestObserver_RecordsSessionID(t *testing.T) {
	l := newTestLedger(t)
	obs := &Observer{Ledger: l}

	ctx := session.NewContext(context.Background(), &session.Session{ID: "sess-42"})
	obs.ChallengeIssued(ctx, "matrix", testChallenge("h9", 42))
	obs.ChallengeIssued(context.Background(), "route", testChallenge("h10", 1))

	records, err := l.ListChallenges(context.Background(), ChallengeFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	bySession := map[string]string{}
	for _, r := range records {
		bySession[r.PaymentHash] = r.SessionID
	}
	assert.Equal(t, "sess-42", bySession["h9"])
	assert.Equal(t, "", bySession["h10"])
}

func TestObserver_WriteFailureIsSwallowed(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Close())

	obs := &Observer{Ledger: l}
	assert.NotPanics(t, func() {
		obs.ChallengeIssued(context.Background(), "route", testChallenge("h", 1))
	})
}
