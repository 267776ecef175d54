package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Request is a single structured-generation call.
type Request struct {
	// Name identifies the routine in logs, e.g. "vivaQuestions".
	Name string

	// Prompt is the fully rendered prompt text.
	Prompt string

	// Schema describes the JSON object the model must return.
	Schema *jsonschema.Schema
}

// Validate checks that the request can be sent.
func (r Request) Validate() error {
	if r.Prompt == "" {
		return ErrEmptyPrompt
	}
	if r.Schema == nil {
		return fmt.Errorf("%w: schema cannot be nil", ErrInvalidConfig)
	}
	return nil
}

// Generator defines the interface for structured generation.
// This interface serves as a boundary between the application core and
// external AI/LLM services, following the hexagonal architecture pattern.
type Generator interface {
	// Generate returns the model's answer as a JSON document conforming to
	// req.Schema. A refusal is reported as ErrContentBlocked; an answer that
	// is not valid JSON as ErrInvalidResponse.
	Generate(ctx context.Context, req Request) (json.RawMessage, error)
}
