package generation

import (
	"os"

	"github.com/maane-ai/maane/internal/apperr"
	"github.com/maane-ai/maane/internal/config"
)

// New builds the generator named by the configuration.
func New(cfg config.GenerationConfig) (Generator, error) {
	switch cfg.Provider {
	case "openai":
		apiKey := os.Getenv(cfg.APIKeyEnv)
		return NewOpenAIGenerator(cfg.BaseURL, apiKey, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout())
	case "ollama":
		return NewOllamaGenerator(cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.Timeout())
	case "mock":
		return NewMockGenerator("תשובה לדוגמה"), nil
	default:
		return nil, apperr.Newf(apperr.CategoryConfiguration, "unknown generation provider", "%q", cfg.Provider)
	}
}
