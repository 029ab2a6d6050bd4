package core

import (
	"context"
)

// StatsRepository defines the interface for persisting per-contact
// statistics. Implementations must make Apply idempotent per record ID
// and all-or-nothing per record, and must return coherent copies from
// Get and Snapshot so readers never observe a partially updated row.
type StatsRepository interface {
	// Apply folds one email record into the statistics table. It returns
	// ErrDuplicateRecord when the record ID was already applied.
	Apply(ctx context.Context, record *EmailRecord) error

	// Get retrieves a snapshot of one contact's statistics. The boolean
	// is false when the contact is unknown; that is not an error.
	Get(ctx context.Context, contactID string) (*ContactStats, bool, error)

	// Snapshot returns a consistent copy of the whole statistics table.
	Snapshot(ctx context.Context) ([]*ContactStats, error)

	// Close releases any resources held by the repository.
	Close() error
}

// SentimentAnalyzer defines the interface for deriving a compound
// sentiment score in [-1, 1] from message text.
type SentimentAnalyzer interface {
	// AnalyzeSentiment scores the given text.
	AnalyzeSentiment(ctx context.Context, text string) (float64, error)
}
