// Package models defines the shared data types for postpilot: posting
// history records, content diversity records, and posting patterns.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Category is a fixed topic bucket used for diversity bookkeeping.
type Category string

// Topic categories. Unclassifiable topics map to CategoryGeneral, never
// to an empty value.
const (
	CategoryTechnology    Category = "technology"
	CategoryBusiness      Category = "business"
	CategoryLifestyle     Category = "lifestyle"
	CategoryEducation     Category = "education"
	CategoryEntertainment Category = "entertainment"
	CategoryNews          Category = "news"
	CategoryGeneral       Category = "general"
)

// Categories lists every category in a fixed order, general last.
func Categories() []Category {
	return []Category{
		CategoryTechnology,
		CategoryBusiness,
		CategoryLifestyle,
		CategoryEducation,
		CategoryEntertainment,
		CategoryNews,
		CategoryGeneral,
	}
}

// PostRecord is one entry in the posting history. Records are append-only
// and never mutated after creation; the history is capped and the oldest
// entries are evicted first.
type PostRecord struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Topic     string    `json:"topic"`
	Success   bool      `json:"success"`
	PostURL   string    `json:"post_url,omitempty"`
	Pattern   string    `json:"pattern"`
}

// ContentRecord is one entry in the content diversity history.
type ContentRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	Topic         string    `json:"topic"`
	Category      Category  `json:"category"`
	ContentHash   string    `json:"content_hash"`
	ContentLength int       `json:"content_length"`
	Keywords      []string  `json:"keywords"`
	Success       bool      `json:"success"`
}

// PostingPattern is a named pacing configuration: the allowed wait range
// between posts and a daily cap.
type PostingPattern struct {
	MinHours   float64 `json:"min_hours"   yaml:"min_hours"`
	MaxHours   float64 `json:"max_hours"   yaml:"max_hours"`
	DailyLimit int     `json:"daily_limit" yaml:"daily_limit"`
}

// Pattern catalog names.
const (
	PatternConservative = "conservative"
	PatternModerate     = "moderate"
	PatternActive       = "active"
)

// DefaultPatterns returns the built-in pattern catalog.
func DefaultPatterns() map[string]PostingPattern {
	return map[string]PostingPattern{
		PatternConservative: {MinHours: 6, MaxHours: 12, DailyLimit: 3},
		PatternModerate:     {MinHours: 4, MaxHours: 8, DailyLimit: 4},
		PatternActive:       {MinHours: 2, MaxHours: 6, DailyLimit: 4},
	}
}

// RateWindow is one counting window of the rate limiter state.
type RateWindow struct {
	// Date is set for the daily window (YYYY-MM-DD local date).
	Date string `json:"date,omitempty"`
	// WindowStart is set for the minute window (unix seconds).
	WindowStart int64 `json:"timestamp,omitempty"`
	Count       int   `json:"count"`
}

// RateLimitState is the persisted counter state for one named API.
type RateLimitState struct {
	Daily  RateWindow `json:"daily"`
	Minute RateWindow `json:"minute"`
}
