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

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIGenerator answers questions via an OpenAI-compatible chat completions API.
type OpenAIGenerator struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAIGenerator creates an OpenAI-compatible chat client.
func NewOpenAIGenerator(baseURL, apiKey, model string, temperature float64, maxTokens int, timeout time.Duration) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, apperr.New(apperr.CategoryConfiguration, "generation API key is required")
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIGenerator{
		client:      &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiChatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends system and user prompts and returns the model's reply.
func (g *OpenAIGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(openaiChatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.CategoryProvider, "generation request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Wrap(apperr.CategoryProvider, "generation response read failed", err)
	}
	var out openaiChatResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", apperr.Wrap(apperr.CategoryProvider, "generation response decode failed", err)
	}
	if out.Error != nil {
		return "", apperr.Newf(apperr.CategoryProvider, "generation provider error", "%s", out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperr.Newf(apperr.CategoryProvider, "generation provider error",
			"status %d: %s", resp.StatusCode, string(payload))
	}
	if len(out.Choices) == 0 {
		return "", apperr.New(apperr.CategoryProvider, "generation provider returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Close is a no-op.
func (g *OpenAIGenerator) Close() error {
	return nil
}
