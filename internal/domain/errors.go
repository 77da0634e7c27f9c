package domain

import "errors"

var (
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCacheStore signals that the durable embedding cache failed on read or write.
	ErrCacheStore = errors.New("embedding cache store error")
)
