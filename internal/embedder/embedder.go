package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnknownProvider   = errors.New("unknown embedding provider")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedding is a generated vector with its provenance.
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // Content hash, used as the cache key
}

// Embedder generates fixed-dimension vectors for text. Implementations must
// be deterministic for identical input.
type Embedder interface {
	// Embed generates a vector for the given text
	Embed(ctx context.Context, text string) (*Embedding, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// DefaultCacheSize bounds the in-memory embedding cache.
const DefaultCacheSize = 10000

// Cache provides in-memory LRU caching of embeddings by content hash.
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewCache creates a new embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		cache, _ = lru.New[string, *Embedding](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get retrieves an embedding from cache. The returned vector is a copy so
// caller mutations cannot pollute cached values.
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}

	vectorCopy := make([]float32, len(emb.Vector))
	copy(vectorCopy, emb.Vector)

	return &Embedding{
		Vector:    vectorCopy,
		Dimension: emb.Dimension,
		Provider:  emb.Provider,
		Model:     emb.Model,
		Hash:      emb.Hash,
	}, true
}

// Set stores an embedding; LRU eviction handles capacity.
func (c *Cache) Set(hash string, emb *Embedding) {
	c.cache.Add(hash, emb)
}

// Size returns the current cache size.
func (c *Cache) Size() int {
	return c.cache.Len()
}

// ComputeHash computes the SHA-256 hash of text for cache keying.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// cachedOrCall checks the cache for text, calling generate on a miss and
// storing the result. Shared by all providers.
func cachedOrCall(cache *Cache, text string, generate func() (*Embedding, error)) (*Embedding, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	hash := ComputeHash(text)
	if cache != nil {
		if emb, ok := cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb, err := generate()
	if err != nil {
		return nil, err
	}
	if len(emb.Vector) == 0 {
		return nil, fmt.Errorf("%w: empty vector returned", ErrProviderFailed)
	}

	emb.Hash = hash
	if cache != nil {
		cache.Set(hash, emb)
	}
	return emb, nil
}
