package scoring

import (
	"context"

	"github.com/quizforge/quizmetrics/internal/domain"
)

// Embedder vectorizes multiple texts in one call. In production this is the
// cached embedder, so repeated scoring of the same material costs nothing.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// KeywordExtractor surfaces the salient terms of a document.
type KeywordExtractor interface {
	Extract(text string, topK int) []string
}
