// Package embcache provides a content-addressable, append-only cache for
// embedding vectors. Entries are keyed by sha256 of the exact text bytes,
// scoped to the embedding model so switching models never mixes vector spaces.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/quizforge/quizmetrics/internal/db"
	"github.com/quizforge/quizmetrics/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "emb_cache:"

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CachedEmbedder caches embeddings in a key-value store.
// Store failures surface to the caller: a broken cache must not silently
// degrade into recomputation, and never masquerades as a valid embedding.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	model      string
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. model becomes part of every cache key.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Embedder,
	s store,
	model string,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		model:      model,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
// Cache miss: full EmbeddingResult from inner, persisted before returning.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	vec, ok, err := c.getFromCache(ctx, key)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	if ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	c.incCache("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	if err := c.putToCache(ctx, key, result.Embedding); err != nil {
		return domain.EmbeddingResult{}, err
	}
	return result, nil
}

// BatchEmbed resolves each text against the cache, then embeds the unique
// misses with a single inner call and persists each new entry. Output order
// matches input order; duplicate texts collapse to one computation.
// Nothing is written if the inner call fails.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	embeddings := make([][]float32, len(texts))
	var missKeys []string
	var missTexts []string
	missPositions := make(map[string][]int)

	for i, text := range texts {
		key := c.cacheKey(text)

		// A duplicate of an already-known miss: just record the position.
		if positions, known := missPositions[key]; known {
			missPositions[key] = append(positions, i)
			continue
		}

		vec, ok, err := c.getFromCache(ctx, key)
		if err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		if ok {
			c.incCache("hit")
			embeddings[i] = vec
			continue
		}

		c.incCache("miss")
		missPositions[key] = []int{i}
		missKeys = append(missKeys, key)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
	}

	result, err := c.embedMisses(ctx, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	if len(result.Embeddings) != len(missTexts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"expected %d embeddings for misses, got %d: %w",
			len(missTexts), len(result.Embeddings), domain.ErrEmbeddingProviderError,
		)
	}

	for j, key := range missKeys {
		vec := result.Embeddings[j]
		if err := c.putToCache(ctx, key, vec); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		for _, pos := range missPositions[key] {
			embeddings[pos] = vec
		}
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: result.PromptTokens,
		TotalTokens:  result.TotalTokens,
	}, nil
}

// embedMisses makes one inner call for all miss texts.
func (c *CachedEmbedder) embedMisses(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := c.inner.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed misses: %w", err)
		}
		return res, nil
	}
	res, err := domain.BatchFallback(ctx, c.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed misses (fallback): %w", err)
	}
	return res, nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + c.model + ":" + hex.EncodeToString(h[:])
}

// getFromCache returns (vector, found, error). Only db.ErrKeyNotFound counts
// as a miss; any other store error, including a corrupt entry, surfaces as
// domain.ErrCacheStore.
func (c *CachedEmbedder) getFromCache(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, false, nil
		}
		c.logger.Error("Failed to read cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false, fmt.Errorf("read cache entry: %v: %w", err, domain.ErrCacheStore)
	}
	if len(data) == 0 {
		return nil, false, nil
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Error("Corrupt cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false, fmt.Errorf("decode cache entry: %v: %w", err, domain.ErrCacheStore)
	}

	return vec, true, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedEmbedder) putToCache(ctx context.Context, key string, vec []float32) error {
	data := vectorToCacheBytes(vec)
	if err := c.store.Set(ctx, key, data); err != nil {
		c.logger.Error("Failed to cache embedding", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("write cache entry: %v: %w", err, domain.ErrCacheStore)
	}
	return nil
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
