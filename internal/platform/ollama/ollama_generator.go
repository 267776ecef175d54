package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/phrazzld/vivaflow/internal/config"
	"github.com/phrazzld/vivaflow/internal/generation"
)

type generateClient interface {
	Generate(ctx context.Context, req *api.GenerateRequest, fn api.GenerateResponseFunc) error
}

// OllamaGenerator implements generation.Generator against the Ollama
// /api/generate endpoint.
type OllamaGenerator struct {
	logger *slog.Logger
	client generateClient
	model  string
	policy generation.RetryPolicy
}

var _ generation.Generator = (*OllamaGenerator)(nil)

// NewOllamaGenerator creates a generator for cfg.OllamaHost.
func NewOllamaGenerator(logger *slog.Logger, cfg config.LLMConfig, httpClient *http.Client) (*OllamaGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	base, err := url.Parse(cfg.OllamaHost)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid ollama host %q", generation.ErrInvalidConfig, cfg.OllamaHost)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OllamaGenerator{
		logger: logger.With("component", "ollama_generator"),
		client: api.NewClient(base, httpClient),
		model:  cfg.ModelName,
		policy: generation.NewRetryPolicy(cfg.MaxRetries, cfg.RetryDelaySeconds),
	}, nil
}

// Generate implements generation.Generator.
func (g *OllamaGenerator) Generate(ctx context.Context, req generation.Request) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	format, err := json.Marshal(req.Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode schema: %v", generation.ErrInvalidConfig, err)
	}

	log := g.logger.With("routine", req.Name, "model", g.model)
	stream := false

	out, err := generation.CallWithRetry(ctx, log, g.policy, func(ctx context.Context) ([]byte, error) {
		var text strings.Builder
		err := g.client.Generate(ctx, &api.GenerateRequest{
			Model:  g.model,
			Prompt: req.Prompt,
			Format: json.RawMessage(format),
			Stream: &stream,
		}, func(resp api.GenerateResponse) error {
			text.WriteString(resp.Response)
			return nil
		})
		if err != nil {
			return nil, classifyError(err)
		}

		body := []byte(strings.TrimSpace(text.String()))
		if len(body) == 0 {
			return nil, fmt.Errorf("%w: empty response", generation.ErrInvalidResponse)
		}
		if !json.Valid(body) {
			return nil, fmt.Errorf("%w: response is not valid JSON", generation.ErrInvalidResponse)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "Ollama call successful", "response_bytes", len(out))
	return out, nil
}

// classifyError marks client errors as permanent. The server reports a
// missing model either as a 404 StatusError or as a bare error message,
// depending on how the body was framed.
func classifyError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return err
		case statusErr.StatusCode >= 400 && statusErr.StatusCode < 500:
			return fmt.Errorf("%w: %v", generation.ErrInvalidRequest, err)
		}
		return err
	}
	if strings.Contains(err.Error(), "not found") {
		return fmt.Errorf("%w: %v", generation.ErrInvalidRequest, err)
	}
	return err
}
