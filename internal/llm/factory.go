package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/toefl-tutor-core/server/internal/agent/model"
)

// NewEmbedder builds the embedder client selected by the provider config.
func NewEmbedder(ctx context.Context, cfg model.EmbedderConfig) (EmbedderClient, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL)

	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL), nil

	case "ollama":
		// Ollama speaks the OpenAI embeddings API under /v1.
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama" // ignored by Ollama, required by the client config
		}
		return NewOpenAIClient(apiKey, cfg.Model, baseURL), nil

	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", cfg.Provider)
	}
}
