package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jmswain/switchboard/internal/usage"
)

// Store is a SQLite implementation of usage.Recorder.
type Store struct {
	db *sql.DB
}

var _ usage.Recorder = (*Store)(nil)

// New opens (or creates) the ledger database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS calls (
			id TEXT PRIMARY KEY,
			account TEXT NOT NULL,
			model TEXT NOT NULL,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			streaming INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			duration_ns INTEGER,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calls_account ON calls(account)`,
		`CREATE INDEX IF NOT EXISTS idx_calls_model ON calls(model)`,
		`CREATE INDEX IF NOT EXISTS idx_calls_created ON calls(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// Record inserts one call row. A missing ID or CreatedAt is filled in.
func (s *Store) Record(ctx context.Context, rec *usage.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `INSERT INTO calls (id, account, model, prompt_tokens, completion_tokens, streaming, status, duration_ns, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Account, rec.Model,
		rec.PromptTokens, rec.CompletionTokens,
		rec.Streaming, rec.Status,
		rec.Duration.Nanoseconds(), rec.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record call: %w", err)
	}

	return nil
}

// Totals sums the ledger for one account, or across every account when
// account is empty.
func (s *Store) Totals(ctx context.Context, account string) (usage.Totals, error) {
	query := `SELECT COUNT(*),
	                 COALESCE(SUM(prompt_tokens), 0),
	                 COALESCE(SUM(completion_tokens), 0)
	          FROM calls`

	args := []any{}
	if account != "" {
		query += ` WHERE account = ?`
		args = append(args, account)
	}

	var totals usage.Totals
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&totals.Calls, &totals.PromptTokens, &totals.CompletionTokens)
	if err != nil {
		return usage.Totals{}, fmt.Errorf("failed to sum calls: %w", err)
	}
	totals.TotalTokens = totals.PromptTokens + totals.CompletionTokens

	return totals, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
