// ABOUTME: SQLite implementation of the Ledger interface using modernc.org/sqlite
// ABOUTME: Creates the challenge and credential event tables on open

package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteLedger opens (or creates) a ledger database at path.
// Parent directories are created if needed.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	logger := slog.Default().With("component", "ledger")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	l := &SQLiteLedger{db: db, logger: logger}
	if err := l.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("payment ledger initialized", "path", path)
	return l, nil
}

func (l *SQLiteLedger) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS payment_challenges (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			invoice TEXT NOT NULL,
			payment_hash TEXT NOT NULL,
			amount_sats INTEGER NOT NULL,
			payment_url TEXT NOT NULL,
			degraded INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_payment_challenges_session
			ON payment_challenges(session_id, created_at);

		CREATE TABLE IF NOT EXISTS credential_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			event TEXT NOT NULL CHECK (event IN ('stored', 'cleared')),
			created_at TEXT NOT NULL
		);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Close closes the database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// RecordChallenge stores a challenge record.
func (l *SQLiteLedger) RecordChallenge(ctx context.Context, rec *ChallengeRecord) error {
	query := `
		INSERT INTO payment_challenges (
			id, session_id, operation, invoice, payment_hash,
			amount_sats, payment_url, degraded, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := l.db.ExecContext(ctx, query,
		rec.ID,
		rec.SessionID,
		rec.Operation,
		rec.Invoice,
		rec.PaymentHash,
		rec.AmountSats,
		rec.PaymentURL,
		boolToInt(rec.Degraded),
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting payment challenge: %w", err)
	}

	l.logger.Debug("recorded payment challenge",
		"id", rec.ID,
		"session_id", rec.SessionID,
		"operation", rec.Operation,
		"amount_sats", rec.AmountSats,
	)
	return nil
}

// RecordCredentialEvent stores a credential store/clear event.
func (l *SQLiteLedger) RecordCredentialEvent(ctx context.Context, sessionID string, event CredentialEvent) error {
	query := `INSERT INTO credential_events (session_id, event, created_at) VALUES (?, ?, ?)`

	_, err := l.db.ExecContext(ctx, query, sessionID, string(event), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("inserting credential event: %w", err)
	}
	return nil
}

// ListChallenges returns challenge records, newest first.
func (l *SQLiteLedger) ListChallenges(ctx context.Context, filter ChallengeFilter) ([]*ChallengeRecord, error) {
	query := `
		SELECT id, session_id, operation, invoice, payment_hash,
		       amount_sats, payment_url, degraded, created_at
		FROM payment_challenges
		WHERE 1=1
	`
	where, args := filter.clauses()
	query += where + " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying payment challenges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*ChallengeRecord
	for rows.Next() {
		rec, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating challenge rows: %w", err)
	}
	return records, nil
}

// Stats aggregates challenge records matching filter. Limit is ignored.
func (l *SQLiteLedger) Stats(ctx context.Context, filter ChallengeFilter) (*ChallengeStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(degraded), 0),
			COALESCE(SUM(amount_sats), 0)
		FROM payment_challenges
		WHERE 1=1
	`
	where, args := filter.clauses()
	query += where

	var stats ChallengeStats
	if err := l.db.QueryRowContext(ctx, query, args...).Scan(&stats.Count, &stats.Degraded, &stats.TotalSats); err != nil {
		return nil, fmt.Errorf("querying challenge stats: %w", err)
	}
	return &stats, nil
}

func (f ChallengeFilter) clauses() (string, []any) {
	var where string
	var args []any
	if f.SessionID != nil {
		where += " AND session_id = ?"
		args = append(args, *f.SessionID)
	}
	if f.Since != nil {
		where += " AND created_at >= ?"
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	return where, args
}

func scanChallenge(rows *sql.Rows) (*ChallengeRecord, error) {
	var rec ChallengeRecord
	var degraded int
	var createdAtStr string

	err := rows.Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.Operation,
		&rec.Invoice,
		&rec.PaymentHash,
		&rec.AmountSats,
		&rec.PaymentURL,
		&degraded,
		&createdAtStr,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning challenge row: %w", err)
	}
	rec.Degraded = degraded != 0

	rec.CreatedAt, err = time.Parse(timeLayout, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure SQLiteLedger implements Ledger.
var _ Ledger = (*SQLiteLedger)(nil)
