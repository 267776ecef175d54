package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/phrazzld/vivaflow/internal/config"
	"github.com/phrazzld/vivaflow/internal/generation"
)

// contentGenerator is the slice of *genai.Models the generator uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator implements the generation.Generator interface using
// Google's Gemini API.
type GeminiGenerator struct {
	logger *slog.Logger
	models contentGenerator
	model  string
	policy generation.RetryPolicy
}

var _ generation.Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a generator from the LLM configuration.
func NewGeminiGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newGenerator(logger, client.Models, cfg), nil
}

func newGenerator(logger *slog.Logger, models contentGenerator, cfg config.LLMConfig) *GeminiGenerator {
	return &GeminiGenerator{
		logger: logger.With("component", "gemini_generator"),
		models: models,
		model:  cfg.ModelName,
		policy: generation.NewRetryPolicy(cfg.MaxRetries, cfg.RetryDelaySeconds),
	}
}

// Generate implements generation.Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req generation.Request) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	log := g.logger.With("routine", req.Name, "model", g.model)
	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenaiSchema(req.Schema),
	}

	out, err := generation.CallWithRetry(ctx, log, g.policy, func(ctx context.Context) ([]byte, error) {
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), genConfig)
		if err != nil {
			return nil, classifyError(err)
		}
		return parseResponse(resp)
	})
	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "Gemini API call successful", "response_bytes", len(out))
	return out, nil
}

// parseResponse extracts the JSON document from the first candidate.
func parseResponse(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, fb.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	out := []byte(strings.TrimSpace(text.String()))
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty text in response", generation.ErrInvalidResponse)
	}
	if !json.Valid(out) {
		return nil, fmt.Errorf("%w: response is not valid JSON", generation.ErrInvalidResponse)
	}
	return out, nil
}

// classifyError marks provider rejections as permanent. Everything else,
// including 429 and 5xx, stays retryable.
func classifyError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	}

	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return fmt.Errorf("%w: %v", generation.ErrInvalidRequest, err)
	default:
		return err
	}
}
