package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	ProviderOpenAI = "openai"

	DefaultOpenAIModel = "text-embedding-3-small"
	OpenAIDimension    = 1536
)

// OpenAIProvider implements Embedder using the OpenAI embeddings API.
type OpenAIProvider struct {
	apiKey     string
	model      string
	httpClient *http.Client
	cache      *Cache
}

// NewOpenAIProvider creates an OpenAI embedder.
func NewOpenAIProvider(apiKey string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}

	return &OpenAIProvider{
		apiKey: apiKey,
		model:  DefaultOpenAIModel,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}, nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
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
			Provider:  ProviderOpenAI,
			Model:     o.model,
		}, nil
	})
}

func (o *OpenAIProvider) callAPI(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"input": []string{text},
		"model": o.model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

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
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return apiResp.Data[0].Embedding, nil
}

func (o *OpenAIProvider) Dimension() int {
	return OpenAIDimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
