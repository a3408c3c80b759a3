package llm

import (
	"context"
	"fmt"

	"github.com/BerylCAtieno/invoice-chat-api/internal/config"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
)

// NewFromConfig builds the model backend selected by cfg.ModelProvider.
// The returned close function releases backend resources.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *utils.Logger) (Model, func() error, error) {
	switch cfg.ModelProvider {
	case config.ProviderOpenRouter:
		client := NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterBaseURL, logger)
		return client, func() error { return nil }, nil
	case config.ProviderVertex:
		client, err := NewVertexClient(ctx, cfg.VertexProjectID, cfg.VertexRegion, cfg.VertexModel)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown model provider %q", cfg.ModelProvider)
	}
}
