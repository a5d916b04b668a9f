// Package storage persists postpilot state (posting history, content
// history, rate-limit counters) behind a small load/save interface with
// JSON-file, in-memory, and redis backends.
package storage

import "context"

// Store persists whole documents keyed by name. Values are JSON-encoded;
// each mutation rewrites the full document (read-modify-write by the
// caller). The design assumes a single writer at a time: there is no file
// locking or transaction, and two concurrent processes can lose the most
// recent record. That risk is accepted for the intended one-process
// deployment.
type Store interface {
	// Load decodes the document at key into v. Returns models.ErrNotFound
	// if the key has never been saved.
	Load(ctx context.Context, key string, v any) error

	// Save encodes v and replaces the document at key.
	Save(ctx context.Context, key string, v any) error
}

// State document keys.
const (
	KeyPostingHistory = "posting_history"
	KeyContentHistory = "content_diversity"
)

// RateLimitKey returns the state key for a named API's rate counters.
func RateLimitKey(apiName string) string {
	return "rate_limit_" + apiName
}
