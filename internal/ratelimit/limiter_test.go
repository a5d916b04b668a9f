package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/postpilot/internal/config"
	"github.com/jonesrussell/postpilot/internal/logger"
	"github.com/jonesrussell/postpilot/internal/storage"
)

func testLimiterConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		APIName:        "testapi",
		CallsPerDay:    3,
		CallsPerMinute: 2,
	}
}

func newTestLimiter(t *testing.T, cur *time.Time) (*Limiter, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	l := New(store, testLimiterConfig(), logger.NewNop(),
		WithClock(func() time.Time { return *cur }),
		WithSleep(func(d time.Duration) { *cur = cur.Add(d) }),
	)
	return l, store
}

func TestCheckRateLimitFreshState(t *testing.T) {
	cur := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	l, _ := newTestLimiter(t, &cur)

	allowed, wait := l.CheckRateLimit()
	assert.True(t, allowed)
	assert.Zero(t, wait)
}

func TestMinuteWindowBlocks(t *testing.T) {
	cur := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	l, _ := newTestLimiter(t, &cur)
	ctx := context.Background()

	require.NoError(t, l.Increment(ctx))
	require.NoError(t, l.Increment(ctx))

	allowed, wait := l.CheckRateLimit()
	assert.False(t, allowed)
	assert.Greater(t, wait, 0)
	assert.LessOrEqual(t, wait, 60)
}

func TestMinuteWindowRollsOver(t *testing.T) {
	cur := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	l, _ := newTestLimiter(t, &cur)
	ctx := context.Background()

	require.NoError(t, l.Increment(ctx))
	require.NoError(t, l.Increment(ctx))

	cur = cur.Add(61 * time.Second)
	allowed, wait := l.CheckRateLimit()
	assert.True(t, allowed)
	assert.Zero(t, wait)
}

func TestDailyLimitBlocksUntilMidnight(t *testing.T) {
	cur := time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC)
	l, _ := newTestLimiter(t, &cur)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Increment(ctx))
		cur = cur.Add(61 * time.Second)
	}

	allowed, wait := l.CheckRateLimit()
	assert.False(t, allowed)
	// 23:03:03 to midnight.
	assert.Equal(t, 3417, wait)
}

func TestDailyWindowRollsOverAtMidnight(t *testing.T) {
	cur := time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC)
	l, _ := newTestLimiter(t, &cur)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Increment(ctx))
		cur = cur.Add(61 * time.Second)
	}

	cur = time.Date(2025, 6, 3, 0, 0, 1, 0, time.UTC)
	allowed, wait := l.CheckRateLimit()
	assert.True(t, allowed)
	assert.Zero(t, wait)

	usage := l.GetUsage()
	assert.Zero(t, usage.DailyUsed)
	assert.Equal(t, "2025-06-03", usage.DailyDate)
}

func TestWaitIfNeededShortWait(t *testing.T) {
	cur := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	l, _ := newTestLimiter(t, &cur)
	ctx := context.Background()

	require.NoError(t, l.Increment(ctx))
	require.NoError(t, l.Increment(ctx))

	// The fake sleep advances the clock, so the minute window resets and
	// the retry succeeds.
	assert.True(t, l.WaitIfNeeded(ctx))

	usage := l.GetUsage()
	assert.Equal(t, 3, usage.DailyUsed)
}

func TestWaitIfNeededRefusesLongWait(t *testing.T) {
	cur := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	l, _ := newTestLimiter(t, &cur)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Increment(ctx))
		cur = cur.Add(61 * time.Second)
	}

	// Fourteen hours to midnight: deny instead of blocking.
	slept := false
	l.sleep = func(time.Duration) { slept = true }
	assert.False(t, l.WaitIfNeeded(ctx))
	assert.False(t, slept)
}

func TestStateSurvivesRestart(t *testing.T) {
	cur := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	l, store := newTestLimiter(t, &cur)
	ctx := context.Background()

	require.NoError(t, l.Increment(ctx))
	require.NoError(t, l.Increment(ctx))

	reloaded := New(store, testLimiterConfig(), logger.NewNop(),
		WithClock(func() time.Time { return cur }))

	usage := reloaded.GetUsage()
	assert.Equal(t, 2, usage.DailyUsed)
	assert.Equal(t, 2, usage.MinuteUsed)
	assert.Equal(t, "2025-06-02", usage.DailyDate)
}

func TestCorruptStateStartsFresh(t *testing.T) {
	cur := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()

	// A JSON string where an object is expected.
	require.NoError(t, store.Save(context.Background(), storage.RateLimitKey("testapi"), "not an object"))

	l := New(store, testLimiterConfig(), logger.NewNop(),
		WithClock(func() time.Time { return cur }))

	allowed, wait := l.CheckRateLimit()
	assert.True(t, allowed)
	assert.Zero(t, wait)
}

func TestSeparateAPIsSeparateState(t *testing.T) {
	cur := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	ctx := context.Background()

	cfgA := testLimiterConfig()
	cfgB := testLimiterConfig()
	cfgB.APIName = "otherapi"

	la := New(store, cfgA, logger.NewNop(), WithClock(func() time.Time { return cur }))
	lb := New(store, cfgB, logger.NewNop(), WithClock(func() time.Time { return cur }))

	require.NoError(t, la.Increment(ctx))
	require.NoError(t, la.Increment(ctx))

	assert.Equal(t, 2, la.GetUsage().DailyUsed)
	assert.Zero(t, lb.GetUsage().DailyUsed)
}
