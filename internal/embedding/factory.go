package embedding

import (
	"os"

	"github.com/maane-ai/maane/internal/apperr"
	"github.com/maane-ai/maane/internal/config"
)

// New builds the embedder named by the configuration.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		apiKey := os.Getenv(cfg.APIKeyEnv)
		return NewOpenAIEmbedder(cfg.BaseURL, apiKey, cfg.Model, cfg.Dimensions, cfg.Timeout())
	case "ollama":
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions, cfg.Timeout())
	case "mock":
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, apperr.Newf(apperr.CategoryConfiguration, "unknown embedding provider", "%q", cfg.Provider)
	}
}
