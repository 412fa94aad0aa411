package domain

import (
	"context"
)

// Provider defines the interface the front door drives. The switchboard has a
// single vendor implementation; the interface exists so handler tests can
// substitute a fake.
type Provider interface {
	Name() string

	// Complete handles unary requests (non-streaming)
	Complete(ctx context.Context, req *CanonicalRequest) (*CanonicalResponse, error)

	// Stream returns a channel of events.
	// The channel MUST be closed by the provider when done.
	Stream(ctx context.Context, req *CanonicalRequest) (<-chan CanonicalEvent, error)

	// ListModels returns the models the upstream account can use.
	ListModels(ctx context.Context, creds Credentials) (*ModelList, error)
}
