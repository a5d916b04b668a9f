package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonesrussell/postpilot/internal/logger"
)

// ErrNoTopics is returned when the rotation has nothing to offer.
var ErrNoTopics = errors.New("no topics configured")

// RotatingTopics cycles through a fixed topic list.
type RotatingTopics struct {
	mu     sync.Mutex
	topics []string
	next   int
}

// NewRotatingTopics builds a provider over the configured topic list.
func NewRotatingTopics(topics []string) *RotatingTopics {
	return &RotatingTopics{topics: topics}
}

// NextTopic returns the next topic in rotation order.
func (p *RotatingTopics) NextTopic(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.topics) == 0 {
		return "", ErrNoTopics
	}
	topic := p.topics[p.next%len(p.topics)]
	p.next++
	return topic, nil
}

// StubGenerator produces placeholder content for dry runs and tests.
type StubGenerator struct{}

// Generate returns a short HTML body mentioning the topic.
func (StubGenerator) Generate(_ context.Context, topic string) (string, error) {
	return fmt.Sprintf("<h1>%s</h1><p>Placeholder draft about %s. Replace this generator with a real one before going live.</p>", topic, topic), nil
}

// DryRunPublisher logs instead of publishing. Used by the once command
// and integration tests.
type DryRunPublisher struct {
	Logger logger.Logger
}

// Publish logs the would-be post and succeeds with no URL.
func (p DryRunPublisher) Publish(_ context.Context, topic, content string) (PublishResult, error) {
	p.Logger.Info("Dry run publish",
		logger.String("topic", topic),
		logger.Int("content_length", len(content)))
	return PublishResult{}, nil
}
