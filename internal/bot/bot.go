// Package bot orchestrates the publish cycle: gate checks, topic
// selection, content generation, diversity scoring, rate limiting, and
// publishing.
package bot

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/jonesrussell/postpilot/internal/archive"
	"github.com/jonesrussell/postpilot/internal/config"
	"github.com/jonesrussell/postpilot/internal/diversity"
	"github.com/jonesrussell/postpilot/internal/logger"
	"github.com/jonesrussell/postpilot/internal/metrics"
	"github.com/jonesrussell/postpilot/internal/ratelimit"
	"github.com/jonesrussell/postpilot/internal/schedule"
)

// TopicProvider supplies the next topic to write about.
type TopicProvider interface {
	NextTopic(ctx context.Context) (string, error)
}

// ContentGenerator produces post content for a topic.
type ContentGenerator interface {
	Generate(ctx context.Context, topic string) (string, error)
}

// PublishResult reports where a post ended up.
type PublishResult struct {
	URL string
}

// Publisher delivers finished content to its destination.
type Publisher interface {
	Publish(ctx context.Context, topic, content string) (PublishResult, error)
}

// Service runs the periodic publish cycle.
type Service struct {
	scheduler *schedule.Scheduler
	diversity *diversity.Service
	limiter   *ratelimit.Limiter

	topics    TopicProvider
	generator ContentGenerator
	publisher Publisher

	archive *archive.Repository // optional
	metrics *metrics.Tracker    // optional

	smoother *rate.Limiter
	tracer   trace.Tracer
	logger   logger.Logger

	checkInterval     time.Duration
	minDiversityScore int
}

// Deps carries the collaborators for New.
type Deps struct {
	Scheduler *schedule.Scheduler
	Diversity *diversity.Service
	Limiter   *ratelimit.Limiter
	Topics    TopicProvider
	Generator ContentGenerator
	Publisher Publisher
	Archive   *archive.Repository
	Metrics   *metrics.Tracker
	Logger    logger.Logger
}

// New assembles the bot service. Archive and Metrics may be nil.
func New(cfg config.BotConfig, deps Deps) *Service {
	rps := cfg.PublishRPS
	if rps <= 0 {
		rps = 1
	}
	return &Service{
		scheduler:         deps.Scheduler,
		diversity:         deps.Diversity,
		limiter:           deps.Limiter,
		topics:            deps.Topics,
		generator:         deps.Generator,
		publisher:         deps.Publisher,
		archive:           deps.Archive,
		metrics:           deps.Metrics,
		smoother:          rate.NewLimiter(rate.Limit(rps), 1),
		tracer:            otel.Tracer("postpilot/bot"),
		logger:            deps.Logger,
		checkInterval:     cfg.CheckInterval,
		minDiversityScore: cfg.MinDiversityScore,
	}
}

// Run executes the publish cycle immediately and then on every tick until
// the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("Bot started", logger.Duration("check_interval", s.checkInterval))

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("Publish cycle failed", logger.Error(err))
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Bot stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Publish cycle failed", logger.Error(err))
			}
		}
	}
}

// RunOnce executes one publish cycle. A cycle that decides not to post is
// not an error; only infrastructure failures are.
func (s *Service) RunOnce(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "bot.publish_cycle")
	defer span.End()

	if ok, reason := s.scheduler.CanPostNow(); !ok {
		s.skip(span, "schedule", reason)
		return nil
	}

	if s.scheduler.ShouldSkipToday() {
		s.skip(span, "random_skip", "randomly skipping this opportunity")
		return nil
	}

	topic, err := s.topics.NextTopic(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "topic selection failed")
		return fmt.Errorf("next topic: %w", err)
	}

	if similar, reason := s.diversity.IsTopicTooSimilar(topic); similar {
		suggested := s.diversity.SuggestDiverseTopic(topic)
		s.logger.Info("Replacing repetitive topic",
			logger.String("original", topic),
			logger.String("suggested", suggested),
			logger.String("reason", reason))
		topic = suggested
	}

	category := diversity.CategorizeTopic(topic)
	span.SetAttributes(
		attribute.String("topic", topic),
		attribute.String("category", string(category)),
	)

	content, err := s.generator.Generate(ctx, topic)
	if err != nil {
		span.SetStatus(codes.Error, "content generation failed")
		return fmt.Errorf("generate content: %w", err)
	}

	report := s.diversity.CheckContentDiversity(content, topic)
	span.SetAttributes(attribute.Int("diversity_score", report.OverallScore))
	if report.OverallScore < s.minDiversityScore {
		s.logger.Warn("Content diversity too low, skipping",
			logger.Int("score", report.OverallScore),
			logger.Strings("issues", report.Issues))
		s.skip(span, "low_diversity", fmt.Sprintf("diversity score %d", report.OverallScore))
		return nil
	}

	s.scheduler.AddHumanLikeDelay()

	if err := s.smoother.Wait(ctx); err != nil {
		return fmt.Errorf("publish smoothing: %w", err)
	}

	if !s.limiter.WaitIfNeeded(ctx) {
		s.skip(span, "rate_limit", "api budget exhausted")
		return nil
	}

	result, err := s.publisher.Publish(ctx, topic, content)
	success := err == nil
	if err != nil {
		span.SetStatus(codes.Error, "publish failed")
		if s.metrics != nil {
			s.metrics.PublishFailed()
		}
		s.logger.Error("Publish failed", logger.String("topic", topic), logger.Error(err))
	} else {
		if s.metrics != nil {
			s.metrics.PostPublished()
		}
		s.logger.Info("Published post",
			logger.String("topic", topic),
			logger.String("url", result.URL))
	}

	if recErr := s.scheduler.RecordPost(ctx, topic, success, result.URL); recErr != nil {
		s.logger.Error("Could not record post", logger.Error(recErr))
	}
	if recErr := s.diversity.RecordContent(ctx, topic, content, success); recErr != nil {
		s.logger.Error("Could not record content", logger.Error(recErr))
	}

	if s.archive != nil {
		entry := archive.Entry{
			Topic:       topic,
			Category:    string(category),
			ContentHash: diversity.ContentHash(content),
			WordCount:   archive.WordCount(content),
			PostURL:     result.URL,
			Success:     success,
		}
		if arcErr := s.archive.RecordPublish(ctx, entry); arcErr != nil {
			s.logger.Error("Could not archive publish", logger.Error(arcErr))
		}
	}

	if err != nil {
		return fmt.Errorf("publish %q: %w", topic, err)
	}

	next := s.scheduler.NextPostingTime()
	s.logger.Info("Next posting opportunity", logger.Time("at", next))
	return nil
}

func (s *Service) skip(span trace.Span, reason, detail string) {
	span.SetAttributes(
		attribute.String("skip_reason", reason),
		attribute.String("skip_detail", detail),
	)
	if s.metrics != nil {
		s.metrics.PostSkipped(reason)
	}
	s.logger.Info("Skipping publish cycle",
		logger.String("reason", reason),
		logger.String("detail", detail))
}
