package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/vivaflow/internal/config"
	"github.com/phrazzld/vivaflow/internal/generation"
	"github.com/phrazzld/vivaflow/internal/platform/gemini"
	"github.com/phrazzld/vivaflow/internal/platform/ollama"
)

// newGenerator creates the generator for the configured provider.
// httpClient is only used by the ollama provider and may be nil.
func newGenerator(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger, httpClient *http.Client) (generation.Generator, error) {
	switch cfg.Provider {
	case "gemini":
		g, err := gemini.NewGeminiGenerator(ctx, logger, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini generator: %w", err)
		}
		return g, nil
	case "ollama":
		g, err := ollama.NewOllamaGenerator(logger, cfg, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama generator: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", generation.ErrInvalidConfig, cfg.Provider)
	}
}
