package scoring

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/quizforge/quizmetrics/internal/domain"
)

// Defaults applied when the caller leaves coverage options zero.
const (
	DefaultTopK              = 20
	DefaultCoverageThreshold = 0.7
)

// fragmentSeparator joins source fragments into one document before
// keyword extraction.
const fragmentSeparator = "\n\n"

// Service computes the four quality metrics over generated quiz questions.
// Every metric is a stateless transformation: embeddings go through the
// cached embedder, degenerate inputs resolve to 0 without touching it.
type Service struct {
	embedder  Embedder
	keywords  KeywordExtractor
	logger    *zap.Logger
	topK      int
	threshold float64
}

// New creates a scoring service with default coverage options.
func New(embedder Embedder, keywords KeywordExtractor, logger *zap.Logger) *Service {
	return &Service{
		embedder:  embedder,
		keywords:  keywords,
		logger:    logger,
		topK:      DefaultTopK,
		threshold: DefaultCoverageThreshold,
	}
}

// WithCoverageDefaults overrides the default topK and threshold used when a
// call leaves them zero.
func (s *Service) WithCoverageDefaults(topK int, threshold float64) *Service {
	if topK > 0 {
		s.topK = topK
	}
	if threshold > 0 {
		s.threshold = threshold
	}
	return s
}

// Relevance returns the mean cosine similarity between the source text and
// each question, in [-1, 1]. Blank text or no questions yields 0.
func (s *Service) Relevance(ctx context.Context, text string, questions []string) (float64, error) {
	questions = nonBlank(questions)
	if strings.TrimSpace(text) == "" || len(questions) == 0 {
		return 0, nil
	}

	res, err := s.embedder.BatchEmbed(ctx, append([]string{text}, questions...))
	if err != nil {
		return 0, fmt.Errorf("embed text and questions: %w", err)
	}

	textVec := res.Embeddings[0]
	sims := make([]float64, 0, len(questions))
	for _, qVec := range res.Embeddings[1:] {
		sims = append(sims, cosine(textVec, qVec))
	}
	return mean(sims), nil
}

// DistractorQuality returns 1 minus the mean cosine similarity between the
// correct answer and its distractors. Distractors textually identical to the
// correct answer are excluded; with none left the index is 0.
func (s *Service) DistractorQuality(ctx context.Context, correct string, distractors []string) (float64, error) {
	correct = strings.TrimSpace(correct)

	valid := make([]string, 0, len(distractors))
	for _, d := range distractors {
		trimmed := strings.TrimSpace(d)
		if trimmed == "" || trimmed == correct {
			continue
		}
		valid = append(valid, trimmed)
	}
	if correct == "" || len(valid) == 0 {
		return 0, nil
	}

	res, err := s.embedder.BatchEmbed(ctx, append([]string{correct}, valid...))
	if err != nil {
		return 0, fmt.Errorf("embed correct answer and distractors: %w", err)
	}

	correctVec := res.Embeddings[0]
	sims := make([]float64, 0, len(valid))
	for _, dVec := range res.Embeddings[1:] {
		sims = append(sims, cosine(correctVec, dVec))
	}
	return 1 - mean(sims), nil
}

// ConceptCoverage extracts up to topK keywords from the joined source
// fragments and returns the percentage covered by at least one question,
// where covered means cosine similarity >= threshold. Result is in [0, 100].
// topK or threshold <= 0 fall back to the service defaults.
func (s *Service) ConceptCoverage(
	ctx context.Context, texts []string, questions []string, topK int, threshold float64,
) (float64, error) {
	doc := strings.TrimSpace(strings.Join(texts, fragmentSeparator))
	questions = nonBlank(questions)
	if doc == "" || len(questions) == 0 {
		return 0, nil
	}

	if topK <= 0 {
		topK = s.topK
	}
	if threshold <= 0 {
		threshold = s.threshold
	}

	kws := s.keywords.Extract(doc, topK)
	if len(kws) == 0 {
		return 0, nil
	}

	res, err := s.embedder.BatchEmbed(ctx, append(append([]string{}, kws...), questions...))
	if err != nil {
		return 0, fmt.Errorf("embed keywords and questions: %w", err)
	}

	kwVecs := res.Embeddings[:len(kws)]
	qVecs := res.Embeddings[len(kws):]

	covered := 0
	for _, kwVec := range kwVecs {
		for _, qVec := range qVecs {
			if cosine(kwVec, qVec) >= threshold {
				covered++
				break
			}
		}
	}
	return 100 * float64(covered) / float64(len(kws)), nil
}

// Diversity returns the mean pairwise distance (1 - cosine) over the strict
// upper triangle of the question similarity matrix, in [0, 1].
// Fewer than two questions yields 0.
func (s *Service) Diversity(ctx context.Context, questions []string) (float64, error) {
	questions = nonBlank(questions)
	if len(questions) < 2 {
		return 0, nil
	}

	res, err := s.embedder.BatchEmbed(ctx, questions)
	if err != nil {
		return 0, fmt.Errorf("embed questions: %w", err)
	}

	var dists []float64
	for i := 0; i < len(res.Embeddings); i++ {
		for j := i + 1; j < len(res.Embeddings); j++ {
			dists = append(dists, 1-cosine(res.Embeddings[i], res.Embeddings[j]))
		}
	}
	return mean(dists), nil
}

// Options tune keyword extraction and coverage for one scoring run.
// Zero values select the service defaults.
type Options struct {
	TopK      int
	Threshold float64
}

// Report carries the four metric scores for one question set. A nil field
// means that metric could not be computed; the rest are unaffected.
type Report struct {
	Relevance         *float64
	DistractorQuality *float64
	ConceptCoverage   *float64
	Diversity         *float64
}

// Score computes all four metrics for a question set. Each metric fails
// independently: a provider or store failure marks that metric unavailable
// and is logged, it never aborts the others.
func (s *Service) Score(ctx context.Context, text string, records []domain.Question, opts Options) Report {
	questions := make([]string, 0, len(records))
	for _, rec := range records {
		questions = append(questions, rec.Text)
	}

	var report Report

	if v, err := s.Relevance(ctx, text, questions); err != nil {
		s.warn("relevance unavailable", err)
	} else {
		report.Relevance = &v
	}

	if v, err := s.meanDistractorQuality(ctx, records); err != nil {
		s.warn("distractor quality unavailable", err)
	} else {
		report.DistractorQuality = &v
	}

	if v, err := s.ConceptCoverage(ctx, []string{text}, questions, opts.TopK, opts.Threshold); err != nil {
		s.warn("concept coverage unavailable", err)
	} else {
		report.ConceptCoverage = &v
	}

	if v, err := s.Diversity(ctx, questions); err != nil {
		s.warn("diversity unavailable", err)
	} else {
		report.Diversity = &v
	}

	return report
}

// meanDistractorQuality averages the per-question index over records that
// carry a correct answer. Records without one are excluded from the mean.
func (s *Service) meanDistractorQuality(ctx context.Context, records []domain.Question) (float64, error) {
	var indexes []float64
	for i, rec := range records {
		if strings.TrimSpace(rec.CorrectAnswer) == "" {
			continue
		}
		v, err := s.DistractorQuality(ctx, rec.CorrectAnswer, rec.Distractors())
		if err != nil {
			return 0, fmt.Errorf("distractor quality [%d]: %w", i, err)
		}
		indexes = append(indexes, v)
	}
	return mean(indexes), nil
}

func (s *Service) warn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, zap.Error(err))
	}
}

func nonBlank(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}
