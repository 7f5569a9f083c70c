package generation

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

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaGenerator answers questions via a local Ollama chat endpoint.
type OllamaGenerator struct {
	client      *http.Client
	baseURL     string
	model       string
	temperature float64
}

// NewOllamaGenerator creates a chat client for an Ollama instance.
func NewOllamaGenerator(baseURL, model string, temperature float64, timeout time.Duration) (*OllamaGenerator, error) {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OllamaGenerator{
		client:      &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
	}, nil
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// Generate sends system and user prompts and returns the model's reply.
func (g *OllamaGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(ollamaChatRequest{
		Model:    g.model,
		Messages: messages,
		Stream:   false,
		Options:  map[string]interface{}{"temperature": g.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.CategoryProvider, "generation request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Wrap(apperr.CategoryProvider, "generation response read failed", err)
	}
	var out ollamaChatResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", apperr.Wrap(apperr.CategoryProvider, "generation response decode failed", err)
	}
	if out.Error != "" {
		return "", apperr.Newf(apperr.CategoryProvider, "generation provider error", "%s", out.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperr.Newf(apperr.CategoryProvider, "generation provider error",
			"status %d: %s", resp.StatusCode, string(payload))
	}
	return out.Message.Content, nil
}

// Close is a no-op.
func (g *OllamaGenerator) Close() error {
	return nil
}
