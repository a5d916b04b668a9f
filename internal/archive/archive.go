// Package archive keeps a long-term record of published posts in an
// embedded sqlite database, beyond the capped operational histories.
package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jonesrussell/postpilot/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS published_posts (
	id            TEXT PRIMARY KEY,
	published_at  TIMESTAMP NOT NULL,
	topic         TEXT NOT NULL,
	category      TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	word_count    INTEGER NOT NULL,
	post_url      TEXT NOT NULL DEFAULT '',
	success       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_published_posts_published_at
	ON published_posts (published_at);
`

// Entry is one archived publish attempt.
type Entry struct {
	ID          string    `db:"id"            json:"id"`
	PublishedAt time.Time `db:"published_at"  json:"published_at"`
	Topic       string    `db:"topic"         json:"topic"`
	Category    string    `db:"category"      json:"category"`
	ContentHash string    `db:"content_hash"  json:"content_hash"`
	WordCount   int       `db:"word_count"    json:"word_count"`
	PostURL     string    `db:"post_url"      json:"post_url"`
	Success     bool      `db:"success"       json:"success"`
}

// Repository provides access to the publish archive.
type Repository struct {
	db     *sqlx.DB
	logger logger.Logger
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures the schema exists.
func Open(path string, log logger.Logger) (*Repository, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	// sqlite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}

	return &Repository{db: db, logger: log}, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// RecordPublish inserts one publish attempt. A zero ID is assigned.
func (r *Repository) RecordPublish(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.PublishedAt.IsZero() {
		entry.PublishedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO published_posts
			(id, published_at, topic, category, content_hash, word_count, post_url, success)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.PublishedAt, entry.Topic, entry.Category,
		entry.ContentHash, entry.WordCount, entry.PostURL, entry.Success)
	if err != nil {
		return fmt.Errorf("insert archive entry: %w", err)
	}

	r.logger.Debug("Archived publish", logger.String("topic", entry.Topic))
	return nil
}

// TopicCount pairs a topic with how often it was published.
type TopicCount struct {
	Topic string `db:"topic" json:"topic"`
	Count int    `db:"n"     json:"count"`
}

// Summary aggregates the archive.
type Summary struct {
	TotalPosts   int          `json:"total_posts"`
	Successful   int          `json:"successful"`
	SuccessRate  float64      `json:"success_rate"`
	AvgWordCount float64      `json:"avg_word_count"`
	TopTopics    []TopicCount `json:"top_topics"`
}

// GetSummary computes archive-wide aggregates and the five most frequent
// topics.
func (r *Repository) GetSummary(ctx context.Context) (Summary, error) {
	var row struct {
		Total      int     `db:"total"`
		Successful int     `db:"successful"`
		AvgWords   float64 `db:"avg_words"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT
			COUNT(*)                                   AS total,
			COALESCE(SUM(success), 0)                  AS successful,
			COALESCE(AVG(word_count), 0)               AS avg_words
		FROM published_posts`)
	if err != nil {
		return Summary{}, fmt.Errorf("aggregate archive: %w", err)
	}

	summary := Summary{
		TotalPosts:   row.Total,
		Successful:   row.Successful,
		AvgWordCount: row.AvgWords,
	}
	if row.Total > 0 {
		summary.SuccessRate = float64(row.Successful) / float64(row.Total)
	}

	err = r.db.SelectContext(ctx, &summary.TopTopics, `
		SELECT topic, COUNT(*) AS n
		FROM published_posts
		GROUP BY topic
		ORDER BY n DESC, topic ASC
		LIMIT 5`)
	if err != nil {
		return Summary{}, fmt.Errorf("top topics: %w", err)
	}

	return summary, nil
}

// Recent returns the newest entries, most recent first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	var entries []Entry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, published_at, topic, category, content_hash, word_count, post_url, success
		FROM published_posts
		ORDER BY published_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent entries: %w", err)
	}
	return entries, nil
}

// WordCount counts whitespace-separated words in content.
func WordCount(content string) int {
	return len(strings.Fields(content))
}
