// Package diversity tracks topical and lexical history so the bot does
// not publish repetitive, spam-like content.
package diversity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/postpilot/internal/logger"
	"github.com/jonesrussell/postpilot/internal/models"
	"github.com/jonesrussell/postpilot/internal/storage"
)

const (
	// historyCap bounds the persisted content history (FIFO eviction).
	historyCap = 50

	// defaultRecentWindow is how many recent records the similarity
	// checks consider.
	defaultRecentWindow = 5

	// topicSimilarityLimit flags a new topic whose Jaccard similarity to
	// any recent topic exceeds it.
	topicSimilarityLimit = 0.8

	// pairSimilarityLimit penalizes historical topic pairs above it when
	// computing the overall diversity score.
	pairSimilarityLimit = 0.7

	keywordOverlapLimit  = 5
	lengthSimilarityGap  = 200
	minRecordsForScoring = 5
	scoringWindow        = 10
	distributionWindow   = 20
	topKeywordCount      = 10
	underusedThreshold   = 2
	overusedThreshold    = 3
	lengthVarietyMin     = 500
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	keywordRe    = regexp.MustCompile(`\b[a-z]{4,}\b`)
)

// Service classifies topics, scores content against recent history, and
// keeps the capped durable content history.
type Service struct {
	store  storage.Store
	logger logger.Logger

	recentWindow int

	mu      sync.Mutex
	history []models.ContentRecord

	now func() time.Time
	rnd *rand.Rand
}

// Option overrides a Service dependency, mainly for tests.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand replaces the random source used for topic suggestions.
func WithRand(rnd *rand.Rand) Option {
	return func(s *Service) { s.rnd = rnd }
}

// WithRecentWindow changes how many recent records the similarity checks
// consider.
func WithRecentWindow(n int) Option {
	return func(s *Service) { s.recentWindow = n }
}

// New creates a Service and loads the content history from the store. A
// missing or unreadable history starts fresh with a warning.
func New(store storage.Store, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:        store,
		logger:       log,
		recentWindow: defaultRecentWindow,
		now:          time.Now,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := store.Load(context.Background(), storage.KeyContentHistory, &s.history); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Warn("Could not load content history, starting fresh", logger.Error(err))
		}
		s.history = nil
	}

	return s
}

// CategorizeTopic maps a topic to its category: the first category whose
// keyword list has a substring hit against the lower-cased topic wins, in
// fixed table order. No hit maps to the general bucket.
func CategorizeTopic(topic string) models.Category {
	lower := strings.ToLower(topic)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category
			}
		}
	}
	return models.CategoryGeneral
}

// Similarity computes the Jaccard similarity of two topics: intersection
// over union of their whitespace-tokenized, lower-cased word sets.
func Similarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

// IsTopicTooSimilar checks the new topic against the most recent history:
// too similar when at least two recent records share its category, or when
// any recent topic exceeds the Jaccard limit.
func (s *Service) IsTopicTooSimilar(topic string) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return false, "no previous content to compare"
	}

	recent := s.recentLocked(s.recentWindow)
	category := CategorizeTopic(topic)

	sameCategory := 0
	for _, rec := range recent {
		if CategorizeTopic(rec.Topic) == category {
			sameCategory++
		}
	}
	if sameCategory >= underusedThreshold {
		return true, fmt.Sprintf("too many recent posts in '%s' category", category)
	}

	for _, rec := range recent {
		if Similarity(topic, rec.Topic) > topicSimilarityLimit {
			return true, fmt.Sprintf("topic too similar to recent post: %s", rec.Topic)
		}
	}

	return false, "topic is sufficiently different"
}

// SuggestDiverseTopic synthesizes a replacement topic from a category used
// fewer than two times in the last ten records. When every category is
// well used the original topic is returned unchanged.
func (s *Service) SuggestDiverseTopic(original string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[models.Category]int)
	for _, rec := range s.recentLocked(scoringWindow) {
		counts[CategorizeTopic(rec.Topic)]++
	}

	var underused []models.Category
	for _, entry := range categoryKeywords {
		if counts[entry.category] < underusedThreshold {
			underused = append(underused, entry.category)
		}
	}
	if len(underused) == 0 {
		return original
	}

	category := underused[s.rnd.Intn(len(underused))]
	angle := contentAngles[s.rnd.Intn(len(contentAngles))]
	seeds := seedKeywords(category)
	keyword := seeds[s.rnd.Intn(len(seeds))]

	suggestion := fmt.Sprintf("%s: %s Trends", angle, titleWord(keyword))
	s.logger.Info("Suggesting diverse topic",
		logger.String("topic", suggestion),
		logger.String("category", string(category)))
	return suggestion
}

// Report is the result of a content diversity check.
type Report struct {
	OverallScore int      `json:"overall_score"`
	Issues       []string `json:"issues"`
	Suggestions  []string `json:"suggestions"`
}

// CheckContentDiversity scores new content against recent history,
// starting from 100 and deducting for topic similarity (30), keyword
// overuse (20), and uniform content length (10).
func (s *Service) CheckContentDiversity(content, topic string) Report {
	report := Report{OverallScore: 100}

	if similar, reason := s.IsTopicTooSimilar(topic); similar {
		report.OverallScore -= 30
		report.Issues = append(report.Issues, "topic similarity: "+reason)
		report.Suggestions = append(report.Suggestions, "consider a different topic category")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	weekAgo := s.now().AddDate(0, 0, -7)
	recentKeywords := make(map[string]struct{})
	for _, rec := range s.history {
		if rec.Timestamp.After(weekAgo) {
			for _, kw := range rec.Keywords {
				recentKeywords[kw] = struct{}{}
			}
		}
	}

	overused := 0
	for _, kw := range extractKeywords(content) {
		if _, ok := recentKeywords[kw]; ok {
			overused++
		}
	}
	if overused > keywordOverlapLimit {
		report.OverallScore -= 20
		report.Issues = append(report.Issues, fmt.Sprintf("keyword overuse: %d repeated keywords", overused))
		report.Suggestions = append(report.Suggestions, "use more varied vocabulary and synonyms")
	}

	if lengths := s.recentLengthsLocked(defaultRecentWindow); len(lengths) > 0 {
		sum := 0
		for _, l := range lengths {
			sum += l
		}
		avg := float64(sum) / float64(len(lengths))
		if math.Abs(float64(len(content))-avg) < lengthSimilarityGap {
			report.OverallScore -= 10
			report.Issues = append(report.Issues, "content length too similar to recent posts")
			report.Suggestions = append(report.Suggestions, "vary content length more significantly")
		}
	}

	if report.OverallScore < 0 {
		report.OverallScore = 0
	}
	return report
}

// RecordContent computes the derived fields for new content (category,
// normalized hash, keyword set) and appends it to the capped history.
func (s *Service) RecordContent(ctx context.Context, topic, content string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, models.ContentRecord{
		Timestamp:     s.now(),
		Topic:         topic,
		Category:      CategorizeTopic(topic),
		ContentHash:   ContentHash(content),
		ContentLength: len(content),
		Keywords:      extractKeywords(content),
		Success:       success,
	})
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}

	if err := s.store.Save(ctx, storage.KeyContentHistory, s.history); err != nil {
		return fmt.Errorf("save content history: %w", err)
	}

	s.logger.Info("Recorded content diversity data", logger.String("topic", topic))
	return nil
}

// KeywordCount pairs a keyword with its recent usage count.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Stats summarizes the content history.
type Stats struct {
	TotalRecords         int                     `json:"total_records"`
	CategoryDistribution map[models.Category]int `json:"category_distribution"`
	TopKeywords          []KeywordCount          `json:"top_keywords"`
	DiversityScore       float64                 `json:"diversity_score"`
	Recommendations      []string                `json:"recommendations"`
}

// GetStats derives diversity statistics: the category distribution over
// the last twenty records, the most frequent keywords of the trailing
// seven days, the overall score, and textual recommendations.
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	distribution := make(map[models.Category]int)
	for _, rec := range s.recentLocked(distributionWindow) {
		distribution[rec.Category]++
	}

	weekAgo := s.now().AddDate(0, 0, -7)
	frequencies := make(map[string]int)
	for _, rec := range s.history {
		if rec.Timestamp.After(weekAgo) {
			for _, kw := range rec.Keywords {
				frequencies[kw]++
			}
		}
	}

	top := make([]KeywordCount, 0, len(frequencies))
	for kw, n := range frequencies {
		top = append(top, KeywordCount{Keyword: kw, Count: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Keyword < top[j].Keyword
	})
	if len(top) > topKeywordCount {
		top = top[:topKeywordCount]
	}

	return Stats{
		TotalRecords:         len(s.history),
		CategoryDistribution: distribution,
		TopKeywords:          top,
		DiversityScore:       s.overallScoreLocked(),
		Recommendations:      s.recommendationsLocked(),
	}
}

// overallScoreLocked averages a category-variety score and a pairwise
// topic-similarity score over the last ten records. Fewer than five
// records is insufficient data and scores 100.
func (s *Service) overallScoreLocked() float64 {
	if len(s.history) < minRecordsForScoring {
		return 100
	}

	recent := s.recentLocked(scoringWindow)

	unique := make(map[models.Category]struct{})
	for _, rec := range recent {
		unique[rec.Category] = struct{}{}
	}
	categoryScore := math.Min(float64(len(unique))/5*100, 100)

	penalties := 0
	for i := range recent {
		for j := i + 1; j < len(recent); j++ {
			if Similarity(recent[i].Topic, recent[j].Topic) > pairSimilarityLimit {
				penalties++
			}
		}
	}
	similarityScore := math.Max(float64(100-penalties*20), 0)

	return (categoryScore + similarityScore) / 2
}

func (s *Service) recommendationsLocked() []string {
	if len(s.history) < minRecordsForScoring {
		return []string{"continue creating content to build diversity metrics"}
	}

	var recommendations []string
	recent := s.recentLocked(scoringWindow)

	counts := make(map[models.Category]int)
	for _, rec := range recent {
		counts[rec.Category]++
	}
	for _, cat := range models.Categories() {
		if counts[cat] > overusedThreshold {
			recommendations = append(recommendations, fmt.Sprintf("reduce posts in '%s' category", cat))
		}
	}

	var unused []string
	for _, entry := range categoryKeywords {
		if counts[entry.category] == 0 {
			unused = append(unused, string(entry.category))
		}
	}
	if len(unused) > 0 {
		recommendations = append(recommendations, "consider topics in: "+strings.Join(unused, ", "))
	}

	minLen, maxLen := recent[0].ContentLength, recent[0].ContentLength
	for _, rec := range recent[1:] {
		if rec.ContentLength < minLen {
			minLen = rec.ContentLength
		}
		if rec.ContentLength > maxLen {
			maxLen = rec.ContentLength
		}
	}
	if maxLen-minLen < lengthVarietyMin {
		recommendations = append(recommendations, "vary content length more (short vs. long-form)")
	}

	if len(recommendations) == 0 {
		return []string{"content diversity looks good"}
	}
	return recommendations
}

// History returns a copy of the content history, oldest first.
func (s *Service) History() []models.ContentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ContentRecord, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Service) recentLocked(n int) []models.ContentRecord {
	if len(s.history) <= n {
		return s.history
	}
	return s.history[len(s.history)-n:]
}

func (s *Service) recentLengthsLocked(n int) []int {
	recent := s.recentLocked(n)
	lengths := make([]int, 0, len(recent))
	for _, rec := range recent {
		lengths = append(lengths, rec.ContentLength)
	}
	return lengths
}

// normalizeContent strips HTML tags, collapses whitespace, and folds
// case, so hashes and keyword extraction see the text alone.
func normalizeContent(content string) string {
	clean := htmlTagRe.ReplaceAllString(strings.ToLower(content), "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(clean, " "))
}

// ContentHash digests the normalized content, so markup and formatting
// changes do not produce a new identity.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(normalizeContent(content)))
	return hex.EncodeToString(sum[:])
}

// extractKeywords returns the sorted set of significant words (length ≥4,
// not a stop word) from the normalized content.
func extractKeywords(content string) []string {
	seen := make(map[string]struct{})
	for _, w := range keywordRe.FindAllString(normalizeContent(content), -1) {
		if _, stop := stopWords[w]; stop {
			continue
		}
		seen[w] = struct{}{}
	}

	keywords := make([]string, 0, len(seen))
	for w := range seen {
		keywords = append(keywords, w)
	}
	sort.Strings(keywords)
	return keywords
}

func titleWord(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}
