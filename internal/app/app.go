// Package app wires configuration, storage, and services into a runnable
// application.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/postpilot/internal/api"
	"github.com/jonesrussell/postpilot/internal/archive"
	"github.com/jonesrussell/postpilot/internal/bot"
	"github.com/jonesrussell/postpilot/internal/config"
	"github.com/jonesrussell/postpilot/internal/diversity"
	"github.com/jonesrussell/postpilot/internal/logger"
	"github.com/jonesrussell/postpilot/internal/metrics"
	"github.com/jonesrussell/postpilot/internal/ratelimit"
	"github.com/jonesrussell/postpilot/internal/schedule"
	"github.com/jonesrussell/postpilot/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// App holds the assembled application.
type App struct {
	Config    *config.Config
	Logger    logger.Logger
	Store     storage.Store
	Scheduler *schedule.Scheduler
	Diversity *diversity.Service
	Limiter   *ratelimit.Limiter
	Archive   *archive.Repository // nil when disabled
	Metrics   *metrics.Tracker
	Bot       *bot.Service

	redisClient *redis.Client
}

// New builds the full service graph from configuration. The bot's
// publisher defaults to a dry run; callers swap in a real one via
// SetPublisher before running.
func New(cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	store, err := a.buildStore(cfg, log)
	if err != nil {
		return nil, err
	}
	a.Store = store

	a.Scheduler = schedule.New(store, cfg.Scheduler, cfg.Bot.ForcePost, log)
	a.Diversity = diversity.New(store, log)
	a.Limiter = ratelimit.New(store, cfg.RateLimit, log)
	a.Metrics = metrics.New()

	if cfg.Archive.Enabled {
		repo, err := archive.Open(cfg.Archive.Path, log)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		a.Archive = repo
	}

	a.Bot = bot.New(cfg.Bot, bot.Deps{
		Scheduler: a.Scheduler,
		Diversity: a.Diversity,
		Limiter:   a.Limiter,
		Topics:    bot.NewRotatingTopics(cfg.Bot.Topics),
		Generator: bot.StubGenerator{},
		Publisher: bot.DryRunPublisher{Logger: log},
		Archive:   a.Archive,
		Metrics:   a.Metrics,
		Logger:    log,
	})

	return a, nil
}

func (a *App) buildStore(cfg *config.Config, log logger.Logger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return storage.NewMemoryStore(), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redisClient = client
		return storage.NewRedisStore(client, log), nil
	default:
		return storage.NewFileStore(cfg.Storage.Dir, log)
	}
}

// Run starts the bot loop and the ops API, blocking until a termination
// signal or a fatal error.
func (a *App) Run() error {
	return a.run(true)
}

// RunAPI serves the ops API without the bot loop. Useful for inspecting
// state while the bot itself is stopped.
func (a *App) RunAPI() error {
	return a.run(false)
}

func (a *App) run(withBot bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(a.Config, api.Deps{
		Scheduler: a.Scheduler,
		Diversity: a.Diversity,
		Limiter:   a.Limiter,
		Archive:   a.Archive,
		Metrics:   a.Metrics,
		Logger:    a.Logger,
	})

	errCh := make(chan error, 2)

	go func() {
		a.Logger.Info("Ops API listening", logger.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("ops api: %w", err)
		}
	}()

	if withBot {
		go func() {
			if err := a.Bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("bot: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("Shutdown signal received")
	case runErr = <-errCh:
		a.Logger.Error("Fatal error", logger.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("Ops API shutdown failed", logger.Error(err))
	}

	a.Close()
	return runErr
}

// SetPublisher replaces the bot's publisher. Must be called before Run.
func (a *App) SetPublisher(p bot.Publisher) {
	a.Bot = bot.New(a.Config.Bot, bot.Deps{
		Scheduler: a.Scheduler,
		Diversity: a.Diversity,
		Limiter:   a.Limiter,
		Topics:    bot.NewRotatingTopics(a.Config.Bot.Topics),
		Generator: bot.StubGenerator{},
		Publisher: p,
		Archive:   a.Archive,
		Metrics:   a.Metrics,
		Logger:    a.Logger,
	})
}

// Close releases held resources.
func (a *App) Close() {
	if a.Archive != nil {
		if err := a.Archive.Close(); err != nil {
			a.Logger.Error("Archive close failed", logger.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.Logger.Error("Redis close failed", logger.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
