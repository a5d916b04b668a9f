// Package ratelimit enforces durable per-API call budgets over a daily
// and a rolling one-minute window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/postpilot/internal/config"
	"github.com/jonesrussell/postpilot/internal/logger"
	"github.com/jonesrussell/postpilot/internal/models"
	"github.com/jonesrussell/postpilot/internal/storage"
)

const (
	dateLayout = "2006-01-02"

	// maxWait caps how long WaitIfNeeded is willing to block before giving
	// up and reporting the call as denied.
	maxWait = time.Hour

	minuteWindow = 60 * time.Second
)

// Limiter tracks API call counts against a daily cap and a per-minute
// cap, persisting state so the budget survives restarts.
type Limiter struct {
	name         string
	maxPerDay    int
	maxPerMinute int

	store  storage.Store
	logger logger.Logger

	mu    sync.Mutex
	state models.RateLimitState

	now   func() time.Time
	sleep func(time.Duration)
}

// Option overrides a Limiter dependency, mainly for tests.
type Option func(*Limiter)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSleep replaces the blocking sleep used by WaitIfNeeded.
func WithSleep(sleep func(time.Duration)) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

// New creates a Limiter for the named API and loads its persisted state.
// Unreadable state starts fresh with a warning; counters reset to zero.
func New(store storage.Store, cfg config.RateLimitConfig, log logger.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		name:         cfg.APIName,
		maxPerDay:    cfg.CallsPerDay,
		maxPerMinute: cfg.CallsPerMinute,
		store:        store,
		logger:       log,
		now:          time.Now,
		sleep:        time.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := store.Load(context.Background(), storage.RateLimitKey(l.name), &l.state); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Warn("Could not load rate limit state, starting fresh",
				logger.String("api", l.name), logger.Error(err))
		}
		l.state = models.RateLimitState{}
	}

	return l
}

// CheckRateLimit reports whether a call is allowed right now, and if not,
// how many whole seconds to wait until the blocking window resets. Stale
// windows are rolled over in place before counting.
func (l *Limiter) CheckRateLimit() (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked()
}

func (l *Limiter) checkLocked() (bool, int) {
	now := l.now()
	l.rolloverLocked(now)

	if l.state.Daily.Count >= l.maxPerDay {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		return false, int(midnight.Sub(now).Seconds())
	}

	if l.state.Minute.Count >= l.maxPerMinute {
		reset := time.Unix(l.state.Minute.WindowStart, 0).Add(minuteWindow)
		wait := int(reset.Sub(now).Seconds())
		if wait < 1 {
			wait = 1
		}
		return false, wait
	}

	return true, 0
}

// rolloverLocked resets the daily window on a date change and the minute
// window once sixty seconds have passed.
func (l *Limiter) rolloverLocked(now time.Time) {
	today := now.Format(dateLayout)
	if l.state.Daily.Date != today {
		l.state.Daily = models.RateWindow{Date: today}
	}
	if l.state.Minute.WindowStart == 0 || now.Unix()-l.state.Minute.WindowStart >= 60 {
		l.state.Minute = models.RateWindow{WindowStart: now.Unix()}
	}
}

// Increment counts one call against both windows and persists the state.
func (l *Limiter) Increment(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.incrementLocked(ctx)
}

func (l *Limiter) incrementLocked(ctx context.Context) error {
	l.rolloverLocked(l.now())
	l.state.Daily.Count++
	l.state.Minute.Count++

	if err := l.store.Save(ctx, storage.RateLimitKey(l.name), l.state); err != nil {
		return fmt.Errorf("save rate limit state for %s: %w", l.name, err)
	}

	l.logger.Debug("Rate limit incremented",
		logger.String("api", l.name),
		logger.Int("daily", l.state.Daily.Count),
		logger.Int("minute", l.state.Minute.Count))
	return nil
}

// WaitIfNeeded blocks until a call is allowed, then counts it and returns
// true. Waits longer than an hour are refused: the pending call is logged
// as denied and false is returned so the caller can defer the work.
func (l *Limiter) WaitIfNeeded(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		allowed, wait := l.checkLocked()
		if allowed {
			if err := l.incrementLocked(ctx); err != nil {
				l.logger.Error("Could not persist rate limit state", logger.Error(err))
			}
			return true
		}

		delay := time.Duration(wait) * time.Second
		if delay > maxWait {
			l.logger.Warn("Rate limit wait too long, denying call",
				logger.String("api", l.name),
				logger.Duration("wait", delay))
			return false
		}

		l.logger.Info("Rate limited, waiting",
			logger.String("api", l.name),
			logger.Duration("wait", delay))

		sleep := l.sleep
		l.mu.Unlock()
		sleep(delay)
		l.mu.Lock()

		select {
		case <-ctx.Done():
			return false
		default:
		}
	}
}

// Usage is a point-in-time snapshot of the limiter's counters.
type Usage struct {
	API         string `json:"api"`
	DailyUsed   int    `json:"daily_used"`
	DailyLimit  int    `json:"daily_limit"`
	MinuteUsed  int    `json:"minute_used"`
	MinuteLimit int    `json:"minute_limit"`
	DailyDate   string `json:"daily_date"`
	WindowStart int64  `json:"window_start"`
}

// GetUsage returns the current counter snapshot after rolling over stale
// windows.
func (l *Limiter) GetUsage() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rolloverLocked(l.now())
	return Usage{
		API:         l.name,
		DailyUsed:   l.state.Daily.Count,
		DailyLimit:  l.maxPerDay,
		MinuteUsed:  l.state.Minute.Count,
		MinuteLimit: l.maxPerMinute,
		DailyDate:   l.state.Daily.Date,
		WindowStart: l.state.Minute.WindowStart,
	}
}
