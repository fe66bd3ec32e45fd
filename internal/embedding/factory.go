package embedding

import (
	"fmt"

	"github.com/matsen/reviewsearch/internal/config"
)

// NewProvider builds the provider selected by cfg.
// Ingestion and search both go through here so they embed with the same model.
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.ProviderName() {
	case config.ProviderOllama:
		return NewOllamaProvider(
			WithBaseURL(cfg.OllamaURL),
			WithModel(cfg.Model),
			WithDimensions(cfg.Dimensions),
		), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider requires %s or embedding.openai_api_key", config.EnvOpenAIAPIKey)
		}
		return NewOpenAIProvider(cfg.OpenAIAPIKey,
			WithOpenAIModel(cfg.Model),
			WithOpenAIDimensions(cfg.Dimensions),
			WithRateLimit(cfg.RequestsPerSecond),
		), nil
	case config.ProviderMock:
		dims := cfg.Dimensions
		if dims <= 0 {
			dims = DefaultDimensions
		}
		return NewMockProvider(dims), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider)
	}
}
