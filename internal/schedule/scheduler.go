// Package schedule gates and paces posting so the bot's cadence resembles
// an irregular human rhythm while respecting declared limits.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonesrussell/postpilot/internal/config"
	"github.com/jonesrussell/postpilot/internal/logger"
	"github.com/jonesrussell/postpilot/internal/models"
	"github.com/jonesrussell/postpilot/internal/storage"
)

const (
	// historyCap bounds the persisted posting history; the oldest records
	// are evicted first.
	historyCap = 100

	// Human-like delay range before a publish.
	delayMin = 30 * time.Second
	delayMax = 5 * time.Minute

	// skipProbability is the chance of skipping an otherwise eligible
	// posting opportunity, modeling human inconsistency.
	skipProbability = 0.1
)

// Scheduler decides whether the bot may post right now, computes the next
// eligible time, and tracks posting outcomes in a capped durable history.
type Scheduler struct {
	store  storage.Store
	logger logger.Logger

	patterns    map[string]models.PostingPattern
	weeklyLimit int
	preferred   config.HourRange

	mu      sync.Mutex
	history []models.PostRecord
	current string
	force   bool

	now   func() time.Time
	sleep func(time.Duration)
	rnd   *rand.Rand
}

// Option overrides a Scheduler dependency, mainly for tests.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithSleep replaces the blocking sleep used by AddHumanLikeDelay.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

// WithRand replaces the random source used for jitter and skip decisions.
func WithRand(rnd *rand.Rand) Option {
	return func(s *Scheduler) { s.rnd = rnd }
}

// New creates a Scheduler and loads the posting history from the store.
// A missing or unreadable history is not fatal: the scheduler starts
// fresh and logs a warning.
func New(store storage.Store, cfg config.SchedulerConfig, force bool, log logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:       store,
		logger:      log,
		patterns:    cfg.Patterns,
		weeklyLimit: cfg.WeeklyLimit,
		preferred:   cfg.PreferredHours,
		current:     cfg.Pattern,
		force:       force,
		now:         time.Now,
		sleep:       time.Sleep,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := store.Load(context.Background(), storage.KeyPostingHistory, &s.history); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Warn("Could not load posting history, starting fresh", logger.Error(err))
		}
		s.history = nil
	}

	return s
}

// CanPostNow reports whether posting is allowed right now and why not if
// it isn't. The force flag bypasses every check, including the random
// daily skip consulted separately via ShouldSkipToday.
func (s *Scheduler) CanPostNow() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.force {
		return true, "forced"
	}

	now := s.now()
	pattern := s.patterns[s.current]

	if len(s.history) > 0 {
		last := s.history[len(s.history)-1].Timestamp
		minWait := time.Duration(pattern.MinHours * float64(time.Hour))
		elapsed := now.Sub(last)
		if elapsed < minWait {
			remaining := minWait - elapsed
			return false, fmt.Sprintf("too soon since last post: wait %.1f more hours", remaining.Hours())
		}
	}

	if s.countOnDate(now) >= pattern.DailyLimit {
		return false, fmt.Sprintf("daily posting limit reached (%d posts)", pattern.DailyLimit)
	}

	if s.countSince(now.AddDate(0, 0, -7)) >= s.weeklyLimit {
		return false, fmt.Sprintf("weekly posting limit reached (%d posts)", s.weeklyLimit)
	}

	if !s.preferred.Contains(now.Hour()) {
		return false, fmt.Sprintf("outside preferred posting hours (%02d:00-%02d:59)",
			s.preferred.Start, s.preferred.End)
	}

	return true, "ready"
}

// NextPostingTime computes the next appropriate posting instant: the last
// post plus a uniformly random wait within the active pattern's range,
// rolled forward hour by hour into the preferred window. With no history
// it schedules one hour out.
func (s *Scheduler) NextPostingTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextPostingTimeLocked()
}

func (s *Scheduler) nextPostingTimeLocked() time.Time {
	var next time.Time
	if len(s.history) > 0 {
		pattern := s.patterns[s.current]
		hours := pattern.MinHours + s.rnd.Float64()*(pattern.MaxHours-pattern.MinHours)
		next = s.history[len(s.history)-1].Timestamp.Add(time.Duration(hours * float64(time.Hour)))
	} else {
		next = s.now().Add(time.Hour)
	}

	for !s.preferred.Contains(next.Hour()) {
		next = next.Add(time.Hour)
	}
	return next
}

// AddHumanLikeDelay blocks for a random span in [30s, 5m] before a
// publish. It is a no-op under the force flag.
func (s *Scheduler) AddHumanLikeDelay() {
	s.mu.Lock()
	if s.force {
		s.mu.Unlock()
		return
	}
	delay := delayMin + time.Duration(s.rnd.Float64()*float64(delayMax-delayMin))
	sleep := s.sleep
	s.mu.Unlock()

	s.logger.Info("Adding human-like delay", logger.Duration("delay", delay))
	sleep(delay)
}

// ShouldSkipToday randomly declines an eligible opportunity with 10%
// probability. Always false under the force flag.
func (s *Scheduler) ShouldSkipToday() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.force {
		return false
	}
	return s.rnd.Float64() < skipProbability
}

// RecordPost appends an attempt to the history, evicts beyond the cap,
// and persists. Records are stamped with the current time and the active
// pattern name.
func (s *Scheduler) RecordPost(ctx context.Context, topic string, success bool, postURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, models.PostRecord{
		ID:        uuid.New(),
		Timestamp: s.now(),
		Topic:     topic,
		Success:   success,
		PostURL:   postURL,
		Pattern:   s.current,
	})
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}

	if err := s.store.Save(ctx, storage.KeyPostingHistory, s.history); err != nil {
		return fmt.Errorf("save posting history: %w", err)
	}

	s.logger.Info("Recorded post",
		logger.String("topic", topic),
		logger.Bool("success", success),
		logger.String("pattern", s.current))
	return nil
}

// Stats summarizes the posting history.
type Stats struct {
	TotalPosts      int       `json:"total_posts"`
	PostsLast24h    int       `json:"posts_last_24h"`
	PostsLast7d     int       `json:"posts_last_7d"`
	SuccessRate     float64   `json:"success_rate"`
	CurrentPattern  string    `json:"current_pattern"`
	NextPostingTime time.Time `json:"next_posting_time"`
}

// GetStats derives posting statistics from the history.
func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	successful := 0
	for _, rec := range s.history {
		if rec.Success {
			successful++
		}
	}

	rate := 0.0
	if len(s.history) > 0 {
		rate = float64(successful) / float64(len(s.history))
	}

	return Stats{
		TotalPosts:      len(s.history),
		PostsLast24h:    s.countSince(now.Add(-24 * time.Hour)),
		PostsLast7d:     s.countSince(now.AddDate(0, 0, -7)),
		SuccessRate:     rate,
		CurrentPattern:  s.current,
		NextPostingTime: s.nextPostingTimeLocked(),
	}
}

// AdjustPattern switches the active pattern. Unknown names are a warned
// no-op and return false so callers can report the decline.
func (s *Scheduler) AdjustPattern(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.patterns[name]; !ok {
		s.logger.Warn("Unknown posting pattern", logger.String("pattern", name))
		return false
	}
	s.current = name
	s.logger.Info("Adjusted posting pattern", logger.String("pattern", name))
	return true
}

// ActivePattern returns the current pattern name and its configuration.
func (s *Scheduler) ActivePattern() (string, models.PostingPattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.patterns[s.current]
}

// History returns a copy of the posting history, oldest first.
func (s *Scheduler) History() []models.PostRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PostRecord, len(s.history))
	copy(out, s.history)
	return out
}

// countOnDate counts records whose timestamp falls on the same local
// calendar date as t.
func (s *Scheduler) countOnDate(t time.Time) int {
	y, m, d := t.Date()
	n := 0
	for _, rec := range s.history {
		ry, rm, rd := rec.Timestamp.Date()
		if ry == y && rm == m && rd == d {
			n++
		}
	}
	return n
}

func (s *Scheduler) countSince(cutoff time.Time) int {
	n := 0
	for _, rec := range s.history {
		if rec.Timestamp.After(cutoff) {
			n++
		}
	}
	return n
}
