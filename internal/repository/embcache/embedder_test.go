package embcache

import (
	"context"
	"errors"
	"testing"

	"github.com/quizforge/quizmetrics/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if ms.sets != 1 {
		t.Fatalf("expected 1 cache put, got %d", ms.sets)
	}
}

func TestEmbed_CacheHitIsIdempotent(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, _ := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	first, err := ce.Embed(ctx, "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ce.Embed(ctx, "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("expected 1 inner call for repeated text, got %d", inner.calls)
	}
	if len(first.Embedding) != len(second.Embedding) {
		t.Fatalf("vector length changed between calls")
	}
	for i := range first.Embedding {
		if first.Embedding[i] != second.Embedding[i] {
			t.Errorf("vec[%d] differs: %f vs %f", i, first.Embedding[i], second.Embedding[i])
		}
	}
	if second.TotalTokens != 0 {
		t.Errorf("expected TotalTokens=0 on cache hit, got %d", second.TotalTokens)
	}
}

func TestEmbed_InnerError_NoWrite(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)

	_, err := ce.Embed(context.Background(), "test text")
	if err == nil {
		t.Fatal("expected error from inner embedder")
	}
	if ms.sets != 0 {
		t.Errorf("expected no cache writes on provider failure, got %d", ms.sets)
	}
}

func TestEmbed_StoreReadErrorSurfaces(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, errors.New("store unreachable")
	}

	_, err := ce.Embed(context.Background(), "test text")
	if !errors.Is(err, domain.ErrCacheStore) {
		t.Fatalf("expected ErrCacheStore, got %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("expected no inner call when the store fails, got %d", inner.calls)
	}
}

func TestEmbed_CorruptEntrySurfaces(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte{0x01, 0x02, 0x03}, nil // not a multiple of 4
	}

	_, err := ce.Embed(context.Background(), "test text")
	if !errors.Is(err, domain.ErrCacheStore) {
		t.Fatalf("expected ErrCacheStore for corrupt entry, got %v", err)
	}
}

func TestEmbed_StoreWriteErrorSurfaces(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.setFn = func(_ context.Context, _ string, _ []byte) error {
		return errors.New("disk full")
	}

	_, err := ce.Embed(context.Background(), "test text")
	if !errors.Is(err, domain.ErrCacheStore) {
		t.Fatalf("expected ErrCacheStore on write failure, got %v", err)
	}
}

// --- BatchEmbed tests ---

func TestBatchEmbed_AllMisses(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2},
		PromptTokens: 5,
		TotalTokens:  5,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
	if ms.sets != 2 {
		t.Errorf("expected 2 cache puts, got %d", ms.sets)
	}
	if inner.batchCalls != 1 {
		t.Errorf("expected 1 batch call to inner, got %d", inner.batchCalls)
	}
	if res.TotalTokens != 10 {
		t.Errorf("expected TotalTokens=10, got %d", res.TotalTokens)
	}
}

func TestBatchEmbed_AllHits(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:   []float32{0.9, 0.8},
		TotalTokens: 5,
	}}
	ce, _ := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	if _, err := ce.BatchEmbed(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("warmup failed: %v", err)
	}

	res, err := ce.BatchEmbed(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
	// All from cache: zero tokens, no second inner call.
	if res.TotalTokens != 0 {
		t.Errorf("expected TotalTokens=0 on all hits, got %d", res.TotalTokens)
	}
	if inner.batchCalls != 1 {
		t.Errorf("expected 1 batch call total (warmup only), got %d", inner.batchCalls)
	}
}

func TestBatchEmbed_MixedHitsMisses(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.5},
		PromptTokens: 3,
		TotalTokens:  3,
	}}
	ce, _ := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	// Warm the cache for "hit1" only.
	if _, err := ce.Embed(ctx, "hit1"); err != nil {
		t.Fatalf("warmup failed: %v", err)
	}
	inner.result.Embedding = []float32{0.7}

	res, err := ce.BatchEmbed(ctx, []string{"miss1", "hit1", "miss2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
	if res.Embeddings[1][0] != 0.5 {
		t.Errorf("expected cached vec at index 1, got %v", res.Embeddings[1])
	}
	if res.Embeddings[0][0] != 0.7 || res.Embeddings[2][0] != 0.7 {
		t.Errorf("expected fresh vecs for misses, got %v, %v", res.Embeddings[0], res.Embeddings[2])
	}
	// Only the two misses reach the provider, in one call.
	if inner.batchCalls != 1 || inner.batchSizes[0] != 2 {
		t.Errorf("expected one batch call with 2 misses, got calls=%d sizes=%v",
			inner.batchCalls, inner.batchSizes)
	}
	if res.TotalTokens != 6 {
		t.Errorf("expected TotalTokens=6 (2 misses * 3), got %d", res.TotalTokens)
	}
}

func TestBatchEmbed_DuplicatesComputedOnce(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:   []float32{0.4},
		TotalTokens: 2,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	res, err := ce.BatchEmbed(context.Background(), []string{"dup", "other", "dup", "dup"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 4 {
		t.Fatalf("expected 4 embeddings, got %d", len(res.Embeddings))
	}
	for i, vec := range res.Embeddings {
		if len(vec) != 1 || vec[0] != 0.4 {
			t.Errorf("position %d not filled: %v", i, vec)
		}
	}
	// Two unique texts: one provider call with 2 inputs, 2 cache writes.
	if inner.batchCalls != 1 || inner.batchSizes[0] != 2 {
		t.Errorf("expected one batch call with 2 unique texts, got calls=%d sizes=%v",
			inner.batchCalls, inner.batchSizes)
	}
	if ms.sets != 2 {
		t.Errorf("expected 2 cache puts for 2 unique texts, got %d", ms.sets)
	}
}

func TestBatchEmbed_OrderPreserved(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, _ := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	// Seed distinguishable vectors directly through the cache, one per text.
	texts := []string{"x", "y", "z"}
	for i, text := range texts {
		inner.result.Embedding = []float32{float32(i + 1)}
		if _, err := ce.Embed(ctx, text); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	res, err := ce.BatchEmbed(ctx, []string{"z", "x", "y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float32{3, 1, 2}
	for i, vec := range res.Embeddings {
		if vec[0] != want[i] {
			t.Errorf("position %d = %v, want %v", i, vec[0], want[i])
		}
	}
}

func TestBatchEmbed_InnerError_NoWrites(t *testing.T) {
	inner := &mockEmbedder{
		result:   domain.EmbeddingResult{Embedding: []float32{0.1}},
		batchErr: errors.New("api down"),
	}
	ce, ms := newTestCachedEmbedder(t, inner)

	_, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error from inner batch embedder")
	}
	if ms.sets != 0 {
		t.Errorf("expected no cache writes on provider failure, got %d", ms.sets)
	}
}

func TestBatchEmbed_Empty(t *testing.T) {
	inner := &mockEmbedder{}
	ce, _ := newTestCachedEmbedder(t, inner)

	res, err := ce.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings != nil {
		t.Errorf("expected nil for empty input")
	}
	if inner.batchCalls != 0 {
		t.Errorf("expected no inner calls for empty input, got %d", inner.batchCalls)
	}
}

func TestCacheKey_DependsOnModel(t *testing.T) {
	inner := &mockEmbedder{}
	ms := newMemStore()
	a := New(inner, ms, "model-a", nil, nil)
	b := New(inner, ms, "model-b", nil, nil)

	if a.cacheKey("same text") == b.cacheKey("same text") {
		t.Fatal("expected different cache keys for different models")
	}
	if a.cacheKey("same text") != a.cacheKey("same text") {
		t.Fatal("expected deterministic cache keys")
	}
}
