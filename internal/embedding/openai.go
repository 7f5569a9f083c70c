package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/maane-ai/maane/internal/apperr"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIEmbedder generates embeddings via an OpenAI-compatible /embeddings API.
type OpenAIEmbedder struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
}

// openaiModelDimensions maps known OpenAI embedding models to their output size.
var openaiModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// NewOpenAIEmbedder creates an OpenAI-compatible embedding client. dimensions
// may be zero for known models; unknown models require an explicit dimension.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dimensions int, timeout time.Duration) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, apperr.New(apperr.CategoryConfiguration, "embedding API key is required")
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if dimensions == 0 {
		var ok bool
		dimensions, ok = openaiModelDimensions[model]
		if !ok {
			return nil, apperr.Newf(apperr.CategoryConfiguration, "unknown embedding model",
				"set dimensions explicitly for model %q", model)
		}
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIEmbedder{
		client:     &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
	}, nil
}

type openaiEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts in one request, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(openaiEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CategoryProvider, "embedding request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.CategoryProvider, "embedding response read failed", err)
	}
	var out openaiEmbedResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, apperr.Wrap(apperr.CategoryProvider, "embedding response decode failed", err)
	}
	if out.Error != nil {
		return nil, apperr.Newf(apperr.CategoryProvider, "embedding provider error", "%s", out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.CategoryProvider, "embedding provider error",
			"status %d: %s", resp.StatusCode, string(payload))
	}
	if len(out.Data) != len(texts) {
		return nil, apperr.Newf(apperr.CategoryProvider, "embedding provider error",
			"expected %d embeddings, got %d", len(texts), len(out.Data))
	}
	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, apperr.Newf(apperr.CategoryProvider, "embedding provider error",
				"embedding index %d out of range", d.Index)
		}
		if len(d.Embedding) != e.dimensions {
			return nil, apperr.Newf(apperr.CategoryConfiguration, "embedding dimension mismatch",
				"provider returned %d dimensions, configured %d", len(d.Embedding), e.dimensions)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the client holds no persistent connections worth tearing down.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
