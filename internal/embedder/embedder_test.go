package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderDeterministic(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	a, err := provider.Embed(context.Background(), "add JWT auth auth.py")
	require.NoError(t, err)
	b, err := provider.Embed(context.Background(), "add JWT auth auth.py")
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector)
	assert.Len(t, a.Vector, LocalDimension)
	assert.Equal(t, ProviderLocal, a.Provider)

	other, err := provider.Embed(context.Background(), "fix typo")
	require.NoError(t, err)
	assert.NotEqual(t, a.Vector, other.Vector)
}

func TestLocalProviderVectorNotDegenerate(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	emb, err := provider.Embed(context.Background(), "anything at all")
	require.NoError(t, err)

	var norm float64
	for _, v := range emb.Vector {
		norm += float64(v) * float64(v)
	}
	assert.Greater(t, norm, 0.0)
}

func TestEmbedEmptyText(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	_, err = provider.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestCacheHit(t *testing.T) {
	cache := NewCache(10)
	provider, err := NewLocalProvider(cache)
	require.NoError(t, err)

	_, err = provider.Embed(context.Background(), "cached text")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Size())

	emb, err := provider.Embed(context.Background(), "cached text")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Size())

	// Mutating the returned vector must not affect the cached copy
	emb.Vector[0] = 999
	again, err := provider.Embed(context.Background(), "cached text")
	require.NoError(t, err)
	assert.NotEqual(t, float32(999), again.Vector[0])
}

func TestComputeHashStable(t *testing.T) {
	assert.Equal(t, ComputeHash("abc"), ComputeHash("abc"))
	assert.NotEqual(t, ComputeHash("abc"), ComputeHash("abd"))
	assert.Len(t, ComputeHash("abc"), 64)
}

func TestOllamaProvider(t *testing.T) {
	var gotModel, gotInput string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var body struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel = body.Model
		gotInput = body.Input

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(server.URL, "nomic-embed-text", nil)
	require.NoError(t, err)

	emb, err := provider.Embed(context.Background(), "refactor login handler")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, emb.Vector)
	assert.Equal(t, 3, emb.Dimension)
	assert.Equal(t, "nomic-embed-text", gotModel)
	assert.Equal(t, "refactor login handler", gotInput)
}

func TestOllamaProviderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(server.URL, "", nil)
	require.NoError(t, err)

	_, err = provider.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestFactorySelection(t *testing.T) {
	t.Run("explicit local", func(t *testing.T) {
		emb, err := New(Config{Provider: "local"})
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, emb.Provider())
	})

	t.Run("explicit ollama", func(t *testing.T) {
		emb, err := New(Config{Provider: "ollama", OllamaURL: "http://example:11434", Model: "m"})
		require.NoError(t, err)
		assert.Equal(t, ProviderOllama, emb.Provider())
		assert.Equal(t, "m", emb.Model())
	})

	t.Run("openai requires key", func(t *testing.T) {
		_, err := New(Config{Provider: "openai"})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("api key implies openai", func(t *testing.T) {
		emb, err := New(Config{APIKey: "sk-test"})
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, emb.Provider())
	})

	t.Run("default is ollama", func(t *testing.T) {
		emb, err := New(Config{})
		require.NoError(t, err)
		assert.Equal(t, ProviderOllama, emb.Provider())
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(Config{Provider: "bogus"})
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})
}

func TestLazyInitializesOnce(t *testing.T) {
	var constructions int
	var mu sync.Mutex

	lazy := NewLazy(func() (Embedder, error) {
		mu.Lock()
		constructions++
		mu.Unlock()
		return NewLocalProvider(nil)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := lazy.Embed(context.Background(), "concurrent first call")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, constructions)
	assert.Equal(t, ProviderLocal, lazy.Provider())
	assert.Equal(t, LocalDimension, lazy.Dimension())
}
