package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"codectx/internal/domain"
)

// HTTPBackend embeds text through an OpenAI-compatible /embeddings
// endpoint. OpenAI, Jina and Ollama all speak this shape.
type HTTPBackend struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	client    *http.Client
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// The dimension argument on the constructors overrides the per-model
// default; 0 keeps the default. Models absent from the switch need the
// override, or dimension mismatches only surface at index time.

func NewOpenAIBackend(apiKeyEnv, model string, dimension int) (*HTTPBackend, error) {
	return newHTTPBackend(apiKeyEnv, model, "https://api.openai.com/v1", dimension)
}

func NewJinaBackend(apiKeyEnv, model string, dimension int) (*HTTPBackend, error) {
	return newHTTPBackend(apiKeyEnv, model, "https://api.jina.ai/v1", dimension)
}

func NewOllamaBackend(model, baseURL string, dimension int) (*HTTPBackend, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}

	if dimension <= 0 {
		dimension = 768
		switch model {
		case "mxbai-embed-large":
			dimension = 1024
		case "all-minilm":
			dimension = 384
		}
	}

	return &HTTPBackend{
		apiKey:    "ollama",
		model:     model,
		baseURL:   baseURL,
		dimension: dimension,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

func newHTTPBackend(apiKeyEnv, model, baseURL string, dimension int) (*HTTPBackend, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	if dimension <= 0 {
		dimension = 1536
		switch model {
		case "text-embedding-3-large":
			dimension = 3072
		case "jina-embeddings-v3":
			dimension = 1024
		case "jina-embeddings-v4":
			dimension = 2048
		}
	}

	return &HTTPBackend{
		apiKey:    apiKey,
		model:     model,
		baseURL:   baseURL,
		dimension: dimension,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

func (b *HTTPBackend) Dimension() int {
	return b.dimension
}

func (b *HTTPBackend) ModelID() string {
	return b.model
}

// EmbedBatch embeds texts in one request. Failures are classified as
// backend errors so the pipeline can retry or skip the batch.
func (b *HTTPBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{
		Input: texts,
		Model: b.model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingBackend, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrEmbeddingBackend, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrEmbeddingBackend, resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", domain.ErrEmbeddingBackend, err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmbeddingBackend, embResp.Error.Message)
	}
	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrEmbeddingBackend, len(texts), len(embResp.Data))
	}

	// The API may return entries out of order; the Index field is
	// authoritative.
	vectors := make([][]float32, len(texts))
	for _, d := range embResp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", domain.ErrEmbeddingBackend, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	return vectors, nil
}
