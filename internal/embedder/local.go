package embedder

import (
	"context"
	"crypto/sha256"
)

const (
	ProviderLocal = "local"

	LocalDimension = 384
)

// LocalProvider is a deterministic, offline embedder. Vectors are derived
// from the text's hash, so identical input always yields identical output.
// Useful for tests and for running without any model server.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a local embedder.
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: "hash-embed",
		cache: cache,
	}, nil
}

func (l *LocalProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
	return cachedOrCall(l.cache, text, func() (*Embedding, error) {
		vector := make([]float32, LocalDimension)

		// Stretch the 32-byte digest across the vector by re-hashing with a
		// counter suffix, so every dimension is populated.
		seed := []byte(text)
		for i := 0; i < LocalDimension; i += sha256.Size {
			digest := sha256.Sum256(append(seed, byte(i/sha256.Size)))
			for j := 0; j < sha256.Size && i+j < LocalDimension; j++ {
				vector[i+j] = float32(digest[j])/127.5 - 1.0
			}
		}

		return &Embedding{
			Vector:    vector,
			Dimension: LocalDimension,
			Provider:  ProviderLocal,
			Model:     l.model,
		}, nil
	})
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}
