package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ProviderOllama = "ollama"

	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
	OllamaDimension    = 768
)

// OllamaProvider implements Embedder against a local Ollama server.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	cache      *Cache
}

// NewOllamaProvider creates an Ollama embedder. Empty baseURL or model fall
// back to the defaults.
func NewOllamaProvider(baseURL, model string, cache *Cache) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}

	return &OllamaProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		cache: cache,
	}, nil
}

func (o *OllamaProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
	return cachedOrCall(o.cache, text, func() (*Embedding, error) {
		config := DefaultRetryConfig()
		vector, err := retryWithBackoff(ctx, config, func() ([]float32, error) {
			return o.callAPI(ctx, text)
		})
		if err != nil {
			return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, MaxRetries, err)
		}

		return &Embedding{
			Vector:    vector,
			Dimension: len(vector),
			Provider:  ProviderOllama,
			Model:     o.model,
		}, nil
	})
}

func (o *OllamaProvider) callAPI(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"model": o.model,
		"input": text,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Embeddings) == 0 || len(apiResp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return apiResp.Embeddings[0], nil
}

func (o *OllamaProvider) Dimension() int {
	return OllamaDimension
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
