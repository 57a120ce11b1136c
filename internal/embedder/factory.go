package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by NewFromEnv.
const (
	EnvEmbeddingProvider = "DEVLOG_EMBEDDING_PROVIDER"
	EnvOllamaURL         = "DEVLOG_OLLAMA_URL"
	EnvOllamaModel       = "DEVLOG_OLLAMA_MODEL"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	APIKey    string
	OllamaURL string
	Model     string
	CacheSize int
}

// NewFromEnv creates an embedder based on environment variables.
// Priority:
//  1. DEVLOG_EMBEDDING_PROVIDER (ollama, openai, local)
//  2. OPENAI_API_KEY if set
//  3. Default to ollama
func NewFromEnv() (Embedder, error) {
	return New(Config{
		Provider:  os.Getenv(EnvEmbeddingProvider),
		APIKey:    os.Getenv(EnvOpenAIAPIKey),
		OllamaURL: os.Getenv(EnvOllamaURL),
		Model:     os.Getenv(EnvOllamaModel),
		CacheSize: DefaultCacheSize,
	})
}

// New creates an embedder with explicit configuration.
func New(cfg Config) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		if cfg.APIKey != "" {
			provider = ProviderOpenAI
		} else {
			provider = ProviderOllama
		}
	}

	switch provider {
	case ProviderOllama:
		return NewOllamaProvider(cfg.OllamaURL, cfg.Model, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// DetectProvider returns the provider name NewFromEnv would select.
func DetectProvider() string {
	if provider := os.Getenv(EnvEmbeddingProvider); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderOllama
}
