package scoring

import (
	"context"

	"go.uber.org/zap"

	"github.com/quizforge/quizmetrics/internal/domain"
)

// mockEmbedder returns canned vectors per text. Unknown texts get a unit
// vector so cosine math stays well-defined.
type mockEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
	batches [][]string
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.calls++
	m.batches = append(m.batches, texts)
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if vec, ok := m.vectors[text]; ok {
			embeddings[i] = vec
			continue
		}
		embeddings[i] = []float32{1, 0, 0}
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
}

// mockExtractor returns a fixed keyword list regardless of input.
type mockExtractor struct {
	terms []string
	calls int
}

func (m *mockExtractor) Extract(_ string, topK int) []string {
	m.calls++
	if len(m.terms) > topK {
		return m.terms[:topK]
	}
	return m.terms
}

func newTestService(vectors map[string][]float32, terms []string) (*Service, *mockEmbedder, *mockExtractor) {
	me := &mockEmbedder{vectors: vectors}
	mx := &mockExtractor{terms: terms}
	return New(me, mx, zap.NewNop()), me, mx
}
