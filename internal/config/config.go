// Package config loads and validates the postpilot configuration from a
// YAML file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonesrussell/postpilot/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultServerAddress is the default ops API listen address.
	DefaultServerAddress = ":8070"
	// DefaultReadTimeout is the default HTTP read timeout.
	DefaultReadTimeout = 10 * time.Second
	// DefaultWriteTimeout is the default HTTP write timeout.
	DefaultWriteTimeout = 30 * time.Second
	// DefaultCheckInterval is how often the bot loop re-evaluates the gate.
	DefaultCheckInterval = 15 * time.Minute

	defaultWeeklyLimit       = 27
	defaultPreferredStart    = 9
	defaultPreferredEnd      = 17
	defaultMinDiversityScore = 50
	defaultCallsPerDay       = 9000
	defaultCallsPerMinute    = 50
	defaultPublishRPS        = 1
)

type Config struct {
	Debug     bool            `yaml:"debug"` // controls log level and format
	Bot       BotConfig       `yaml:"bot"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Server    ServerConfig    `yaml:"server"`
}

type BotConfig struct {
	CheckInterval     time.Duration `yaml:"check_interval"`
	MinDiversityScore int           `yaml:"min_diversity_score"` // 0-100; below this the cycle is skipped
	PublishRPS        int           `yaml:"publish_rps"`         // in-process smoothing on publishes
	ForcePost         bool          `yaml:"force_post"`          // bypass pacing gates entirely
	Topics            []string      `yaml:"topics"`              // topic rotation for the built-in provider
}

type SchedulerConfig struct {
	Pattern        string                           `yaml:"pattern"` // active pattern name
	WeeklyLimit    int                              `yaml:"weekly_limit"`
	PreferredHours HourRange                        `yaml:"preferred_hours"`
	Patterns       map[string]models.PostingPattern `yaml:"patterns"` // overrides the built-in catalog
}

// HourRange is an inclusive range of local hours-of-day.
type HourRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Contains reports whether hour falls in the range.
func (r HourRange) Contains(hour int) bool {
	return hour >= r.Start && hour <= r.End
}

type RateLimitConfig struct {
	APIName        string `yaml:"api_name"`
	CallsPerDay    int    `yaml:"max_calls_per_day"`
	CallsPerMinute int    `yaml:"max_calls_per_minute"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // file | memory | redis
	Dir     string `yaml:"dir"`     // state directory for the file backend
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // sqlite database file
}

type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Storage backend names.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Load reads the YAML file at path, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns a fully defaulted configuration without reading a file.
// Used by tests and the in-memory backend.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

func setDefaults(cfg *Config) {
	if cfg.Bot.CheckInterval == 0 {
		cfg.Bot.CheckInterval = DefaultCheckInterval
	}
	if cfg.Bot.MinDiversityScore == 0 {
		cfg.Bot.MinDiversityScore = defaultMinDiversityScore
	}
	if cfg.Bot.PublishRPS == 0 {
		cfg.Bot.PublishRPS = defaultPublishRPS
	}
	if cfg.Scheduler.Pattern == "" {
		cfg.Scheduler.Pattern = models.PatternModerate
	}
	if cfg.Scheduler.WeeklyLimit == 0 {
		cfg.Scheduler.WeeklyLimit = defaultWeeklyLimit
	}
	if cfg.Scheduler.PreferredHours == (HourRange{}) {
		cfg.Scheduler.PreferredHours = HourRange{Start: defaultPreferredStart, End: defaultPreferredEnd}
	}
	if cfg.Scheduler.Patterns == nil {
		cfg.Scheduler.Patterns = models.DefaultPatterns()
	}
	if cfg.RateLimit.APIName == "" {
		cfg.RateLimit.APIName = "blogger"
	}
	if cfg.RateLimit.CallsPerDay == 0 {
		cfg.RateLimit.CallsPerDay = defaultCallsPerDay
	}
	if cfg.RateLimit.CallsPerMinute == 0 {
		cfg.RateLimit.CallsPerMinute = defaultCallsPerMinute
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendFile
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "data"
	}
	if cfg.Archive.Path == "" {
		cfg.Archive.Path = "data/archive.db"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultServerAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
}

func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("POSTPILOT_FORCE_POST"); v != "" {
		cfg.Bot.ForcePost = parseBool(v)
	}
	if v := os.Getenv("POSTPILOT_PATTERN"); v != "" {
		cfg.Scheduler.Pattern = v
	}
	if v := os.Getenv("POSTPILOT_STATE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("POSTPILOT_PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if _, ok := c.Scheduler.Patterns[c.Scheduler.Pattern]; !ok {
		return fmt.Errorf("scheduler.pattern %q: %w", c.Scheduler.Pattern, models.ErrUnknownPattern)
	}
	for name, p := range c.Scheduler.Patterns {
		if p.MinHours < 0 || p.MaxHours < p.MinHours {
			return fmt.Errorf("scheduler.patterns[%s]: invalid hour range %v-%v", name, p.MinHours, p.MaxHours)
		}
		if p.DailyLimit <= 0 {
			return fmt.Errorf("scheduler.patterns[%s]: daily_limit must be positive", name)
		}
	}
	if c.Scheduler.WeeklyLimit <= 0 {
		return errors.New("scheduler.weekly_limit must be positive")
	}
	hr := c.Scheduler.PreferredHours
	if hr.Start < 0 || hr.End > 23 || hr.Start > hr.End {
		return fmt.Errorf("scheduler.preferred_hours: invalid range %d-%d", hr.Start, hr.End)
	}
	if c.RateLimit.CallsPerDay <= 0 || c.RateLimit.CallsPerMinute <= 0 {
		return errors.New("rate_limit caps must be positive")
	}
	switch c.Storage.Backend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required when storage.backend is redis")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of file, memory, redis", c.Storage.Backend)
	}
	if c.Bot.MinDiversityScore < 0 || c.Bot.MinDiversityScore > 100 {
		return errors.New("bot.min_diversity_score must be within 0-100")
	}
	return nil
}

// parseBool accepts "true", "1", "yes" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
