package models

import "errors"

// Sentinel errors shared across packages. Policy declines (pacing gates,
// quota exhaustion) are returned as boolean decisions with reasons, not as
// errors; these sentinels cover genuine lookup and I/O conditions.
var (
	// ErrNotFound indicates a persisted object does not exist yet.
	ErrNotFound = errors.New("not found")

	// ErrUnknownPattern indicates a pattern name outside the catalog.
	ErrUnknownPattern = errors.New("unknown posting pattern")
)
