package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/postpilot/internal/config"
	"github.com/jonesrussell/postpilot/internal/diversity"
	"github.com/jonesrussell/postpilot/internal/logger"
	"github.com/jonesrussell/postpilot/internal/ratelimit"
	"github.com/jonesrussell/postpilot/internal/schedule"
	"github.com/jonesrussell/postpilot/internal/storage"
)

type fakePublisher struct {
	calls []string
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, topic, _ string) (PublishResult, error) {
	p.calls = append(p.calls, topic)
	if p.err != nil {
		return PublishResult{}, p.err
	}
	return PublishResult{URL: "https://example.com/" + topic}, nil
}

type fixture struct {
	bot       *Service
	scheduler *schedule.Scheduler
	diversity *diversity.Service
	publisher *fakePublisher
}

// newFixture builds a bot with forced pacing so gate checks, random
// skips, and the pre-publish delay stay out of the way.
func newFixture(t *testing.T, force bool, clock func() time.Time) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Bot.ForcePost = force
	cfg.Bot.Topics = []string{"Gardening Notes"}

	store := storage.NewMemoryStore()
	log := logger.NewNop()

	opts := []schedule.Option{schedule.WithSleep(func(time.Duration) {})}
	if clock != nil {
		opts = append(opts, schedule.WithClock(clock))
	}

	f := &fixture{
		scheduler: schedule.New(store, cfg.Scheduler, force, log, opts...),
		diversity: diversity.New(store, log),
		publisher: &fakePublisher{},
	}
	f.bot = New(cfg.Bot, Deps{
		Scheduler: f.scheduler,
		Diversity: f.diversity,
		Limiter:   ratelimit.New(store, cfg.RateLimit, log),
		Topics:    NewRotatingTopics(cfg.Bot.Topics),
		Generator: StubGenerator{},
		Publisher: f.publisher,
		Logger:    log,
	})
	return f
}

func TestRunOncePublishes(t *testing.T) {
	f := newFixture(t, true, nil)

	require.NoError(t, f.bot.RunOnce(context.Background()))

	require.Len(t, f.publisher.calls, 1)
	assert.Equal(t, "Gardening Notes", f.publisher.calls[0])

	posts := f.scheduler.History()
	require.Len(t, posts, 1)
	assert.True(t, posts[0].Success)
	assert.Equal(t, "https://example.com/Gardening Notes", posts[0].PostURL)

	content := f.diversity.History()
	require.Len(t, content, 1)
	assert.Equal(t, "Gardening Notes", content[0].Topic)
}

func TestRunOncePublishFailureStillRecorded(t *testing.T) {
	f := newFixture(t, true, nil)
	f.publisher.err = errors.New("upstream down")

	err := f.bot.RunOnce(context.Background())
	require.Error(t, err)

	posts := f.scheduler.History()
	require.Len(t, posts, 1)
	assert.False(t, posts[0].Success)

	content := f.diversity.History()
	require.Len(t, content, 1)
	assert.False(t, content[0].Success)
}

func TestRunOnceSkipsOutsideSchedule(t *testing.T) {
	// 3 AM, outside preferred posting hours, not forced.
	clock := func() time.Time {
		return time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
	}
	f := newFixture(t, false, clock)

	require.NoError(t, f.bot.RunOnce(context.Background()))
	assert.Empty(t, f.publisher.calls)
	assert.Empty(t, f.scheduler.History())
}

func TestRunOnceReplacesRepetitiveTopic(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()

	// Saturate the technology category so an incoming tech topic gets
	// swapped for a suggestion.
	require.NoError(t, f.diversity.RecordContent(ctx, "AI Assistants", "earlier body one", true))
	require.NoError(t, f.diversity.RecordContent(ctx, "Software Releases", "earlier body two", true))

	f.bot.topics = NewRotatingTopics([]string{"Programming Tips"})
	require.NoError(t, f.bot.RunOnce(ctx))

	require.Len(t, f.publisher.calls, 1)
	assert.NotEqual(t, "Programming Tips", f.publisher.calls[0])
}

func TestRunOnceNoTopics(t *testing.T) {
	f := newFixture(t, true, nil)
	f.bot.topics = NewRotatingTopics(nil)

	err := f.bot.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTopics)
	assert.Empty(t, f.publisher.calls)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, false, func() time.Time {
		return time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop on cancel")
	}
}

func TestRotatingTopics(t *testing.T) {
	p := NewRotatingTopics([]string{"a", "b"})
	ctx := context.Background()

	for _, want := range []string{"a", "b", "a", "b"} {
		got, err := p.NextTopic(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestStubGeneratorMentionsTopic(t *testing.T) {
	content, err := StubGenerator{}.Generate(context.Background(), "Compost Basics")
	require.NoError(t, err)
	assert.Contains(t, content, "Compost Basics")
}
