// Package usage keeps a per-call ledger of token spend across accounts.
package usage

import (
	"context"
	"time"
)

// Terminal statuses written to the ledger. Failed calls record the error
// code string instead of a fixed value.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Record is one finished upstream call, written after the terminal state is
// known. Token counts are estimates; the upstream protocol reports none.
type Record struct {
	ID               string
	Account          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Streaming        bool
	Status           string
	Duration         time.Duration
	CreatedAt        time.Time
}

// Totals aggregates ledger rows for reporting.
type Totals struct {
	Calls            int64 `json:"calls"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Recorder persists call records.
type Recorder interface {
	// Record stores one call row.
	Record(ctx context.Context, rec *Record) error

	// Totals sums the ledger for one account, or across every account when
	// account is empty.
	Totals(ctx context.Context, account string) (Totals, error)

	// Close closes the underlying store.
	Close() error
}

// NopRecorder discards every record. It stands in when the ledger is
// disabled in configuration.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *Record) error { return nil }

func (NopRecorder) Totals(context.Context, string) (Totals, error) { return Totals{}, nil }

func (NopRecorder) Close() error { return nil }
