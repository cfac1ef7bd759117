package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

// ---- Repository contract ---------------------------------------------------

// RuleReader is one open connection to the rule store.
type RuleReader interface {
	// RegexRules returns the bad-practice rules of language that carry a
	// code pattern.
	RegexRules(ctx context.Context, language string) ([]models.Rule, error)
	// VectorRules returns the rules of language that have a stored vector.
	VectorRules(ctx context.Context, language string) ([]models.Rule, error)
	Close() error
}

// RuleStore hands out a RuleReader per retrieval call.
type RuleStore interface {
	Open(ctx context.Context) (RuleReader, error)
}

// RuleStoreFunc adapts a function to RuleStore.
type RuleStoreFunc func(ctx context.Context) (RuleReader, error)

// Open calls f(ctx).
func (f RuleStoreFunc) Open(ctx context.Context) (RuleReader, error) { return f(ctx) }

// ---- Retriever -------------------------------------------------------------

// Retrieval defaults.
const (
	DefaultSimilarityThreshold = 0.55
	DefaultTopK                = 3
)

const regexMatchTimeout = 2 * time.Second

// Retriever finds the rules relevant to a code chunk: direct regex hits on
// bad-practice patterns first, semantic neighbours otherwise.
type Retriever struct {
	store     RuleStore
	embedder  Embedder
	threshold float64
	topK      int
	logger    *zap.Logger

	mu       sync.Mutex
	patterns map[string]*regexp2.Regexp
}

// NewRetriever wires the rule store and embedder. Non-positive threshold or
// topK select the defaults.
func NewRetriever(store RuleStore, embedder Embedder, threshold float64, topK int, logger *zap.Logger) *Retriever {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		store:     store,
		embedder:  embedder,
		threshold: threshold,
		topK:      topK,
		logger:    logger.Named("retriever"),
		patterns:  map[string]*regexp2.Regexp{},
	}
}

// FindRelevantRules never fails: store and embedding errors are logged and
// reported as an empty result tagged MethodError.
func (r *Retriever) FindRelevantRules(ctx context.Context, chunk, language string) models.RetrievalResult {
	reader, err := r.store.Open(ctx)
	if err != nil {
		r.logger.Error("rule store unavailable", zap.Error(err))
		return models.RetrievalResult{Method: models.MethodError}
	}
	defer func() {
		if err := reader.Close(); err != nil {
			r.logger.Warn("closing rule store", zap.Error(err))
		}
	}()

	bad, err := reader.RegexRules(ctx, language)
	if err != nil {
		r.logger.Error("loading regex rules", zap.String("language", language), zap.Error(err))
		return models.RetrievalResult{Method: models.MethodError}
	}
	if matched := r.regexMatches(bad, chunk); len(matched) > 0 {
		r.logger.Info("direct violations found via regex", zap.Int("count", len(matched)))
		return models.RetrievalResult{BadPractices: matched, Method: models.MethodRegex}
	}

	r.logger.Debug("no regex match, falling back to vector search")
	rules, err := reader.VectorRules(ctx, language)
	if err != nil {
		r.logger.Error("loading vectorized rules", zap.String("language", language), zap.Error(err))
		return models.RetrievalResult{Method: models.MethodError}
	}
	if len(rules) == 0 {
		r.logger.Info("no vectorized rules found", zap.String("language", language))
		return models.RetrievalResult{Method: models.MethodVector}
	}

	vec, err := r.embedder.Embed(ctx, chunk)
	if err != nil {
		r.logger.Error("embedding chunk", zap.Error(err))
		return models.RetrievalResult{Method: models.MethodError}
	}

	result := models.RetrievalResult{Method: models.MethodVector}
	for _, m := range r.nearest(vec, rules) {
		if m.PracticeType == models.PracticeBad {
			result.BadPractices = append(result.BadPractices, m)
		} else {
			result.GoodPractices = append(result.GoodPractices, m)
		}
	}
	r.logger.Info("semantically relevant rules found",
		zap.Int("count", len(result.BadPractices)+len(result.GoodPractices)),
		zap.Float64("threshold", r.threshold))
	return result
}

// regexMatches tests every pattern case-insensitively. Patterns that fail to
// compile or time out are logged and skipped.
func (r *Retriever) regexMatches(rules []models.Rule, chunk string) []models.MatchedRule {
	var matched []models.MatchedRule
	for _, rule := range rules {
		re, err := r.compile(rule.CodePattern)
		if err != nil {
			r.logger.Warn("skipping rule with invalid pattern", zap.Int64("rule_id", rule.ID), zap.Error(err))
			continue
		}
		ok, err := re.MatchString(chunk)
		if err != nil {
			r.logger.Warn("pattern match failed", zap.Int64("rule_id", rule.ID), zap.Error(err))
			continue
		}
		if ok {
			m := rule.Match(0)
			m.PracticeType = models.PracticeBad
			matched = append(matched, m)
		}
	}
	return matched
}

func (r *Retriever) compile(pattern string) (*regexp2.Regexp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if re, ok := r.patterns[pattern]; ok {
		return re, nil
	}
	re, err := CompileRulePattern(pattern)
	if err != nil {
		return nil, err
	}
	r.patterns[pattern] = re
	return re, nil
}

// nearest keeps rules strictly above the threshold, highest similarity first,
// at most topK. Ties keep store order.
func (r *Retriever) nearest(vec []float32, rules []models.Rule) []models.MatchedRule {
	var scored []models.MatchedRule
	for _, rule := range rules {
		if len(rule.Vector) != len(vec) {
			r.logger.Warn("skipping rule with mismatched vector size",
				zap.Int64("rule_id", rule.ID), zap.Int("rule_dims", len(rule.Vector)), zap.Int("chunk_dims", len(vec)))
			continue
		}
		if sim := cosineSimilarity(vec, rule.Vector); sim > r.threshold {
			scored = append(scored, rule.Match(sim))
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > r.topK {
		scored = scored[:r.topK]
	}
	return scored
}

// CompileRulePattern compiles a stored rule pattern the way it is matched at
// review time: case-insensitive, with a bounded match time.
func CompileRulePattern(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = regexMatchTimeout
	return re, nil
}
