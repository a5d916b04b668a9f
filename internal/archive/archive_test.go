package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/postpilot/internal/logger"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "archive.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRecordAndSummary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	entries := []Entry{
		{PublishedAt: base, Topic: "AI Tools", Category: "technology", ContentHash: "h1", WordCount: 400, PostURL: "https://example.com/1", Success: true},
		{PublishedAt: base.Add(time.Hour), Topic: "Travel Tips", Category: "lifestyle", ContentHash: "h2", WordCount: 800, Success: true},
		{PublishedAt: base.Add(2 * time.Hour), Topic: "AI Tools", Category: "technology", ContentHash: "h3", WordCount: 600, Success: false},
	}
	for _, e := range entries {
		require.NoError(t, repo.RecordPublish(ctx, e))
	}

	summary, err := repo.GetSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalPosts)
	assert.Equal(t, 2, summary.Successful)
	assert.InDelta(t, 2.0/3.0, summary.SuccessRate, 1e-9)
	assert.InDelta(t, 600.0, summary.AvgWordCount, 1e-9)

	require.NotEmpty(t, summary.TopTopics)
	assert.Equal(t, "AI Tools", summary.TopTopics[0].Topic)
	assert.Equal(t, 2, summary.TopTopics[0].Count)
}

func TestSummaryEmpty(t *testing.T) {
	repo := newTestRepo(t)

	summary, err := repo.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.TotalPosts)
	assert.Zero(t, summary.SuccessRate)
	assert.Empty(t, summary.TopTopics)
}

func TestRecentOrderAndLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.RecordPublish(ctx, Entry{
			PublishedAt: base.Add(time.Duration(i) * time.Hour),
			Topic:       "topic",
			Category:    "general",
			ContentHash: "h",
			WordCount:   100,
			Success:     true,
		}))
	}

	entries, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Newest first.
	assert.True(t, entries[0].PublishedAt.After(entries[1].PublishedAt))
	assert.True(t, entries[1].PublishedAt.After(entries[2].PublishedAt))
}

func TestRecordAssignsID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.RecordPublish(ctx, Entry{Topic: "t", Category: "general", ContentHash: "h", Success: true}))

	entries, err := repo.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].PublishedAt.IsZero())
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 3, WordCount("one two three"))
	assert.Equal(t, 2, WordCount("  spaced   out  "))
}
