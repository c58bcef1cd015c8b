package embedding

import (
	"fmt"

	"codectx/config"
	"codectx/internal/port"
)

// NewBackend creates the configured embedding backend. Selection happens
// once at startup; callers hold the result for the life of the process.
func NewBackend(cfg config.EmbedderConfig) (port.EmbedderBackend, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIBackend(cfg.APIKeyEnv, cfg.Model, cfg.Dimension)
	case "jina":
		return NewJinaBackend(cfg.APIKeyEnv, cfg.Model, cfg.Dimension)
	case "ollama":
		return NewOllamaBackend(cfg.Model, cfg.BaseURL, cfg.Dimension)
	case "mock":
		return NewMockBackend(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
