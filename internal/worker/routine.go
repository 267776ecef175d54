package worker

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"text/template"

	"github.com/go-playground/validator/v10"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/phrazzld/vivaflow/internal/generation"
	"github.com/phrazzld/vivaflow/internal/task"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Routine errors
var (
	// ErrInvalidRequest is returned when request data lacks what the
	// routine's prompt needs.
	ErrInvalidRequest = errors.New("invalid request data")

	// ErrOutputMismatch is returned when generated output does not conform
	// to the routine's schema.
	ErrOutputMismatch = errors.New("generated output does not match schema")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type textRequest struct {
	Text string `json:"text" validate:"required"`
}

type marksheetRequest struct {
	Text   string          `json:"text" validate:"required"`
	Rubric json.RawMessage `json:"rubric" validate:"required"`
}

type rubricRequest struct {
	Title string `json:"title" validate:"required"`
	Brief string `json:"brief" validate:"required"`
}

type promptRequest struct {
	Prompt     string          `json:"prompt" validate:"required"`
	RubricData json.RawMessage `json:"rubric_data"`
}

func decodeAs[T any](data json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validate.Struct(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return v, nil
}

// Routine turns one task type's request data into a generation request and
// checks the model's answer against the type's output schema.
type Routine struct {
	Type     task.Type
	prompt   *template.Template
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
	decode   func(json.RawMessage) (any, error)
}

// Request renders the prompt for data.
func (r *Routine) Request(data json.RawMessage) (generation.Request, error) {
	input, err := r.decode(data)
	if err != nil {
		return generation.Request{}, err
	}
	var buf bytes.Buffer
	if err := r.prompt.Execute(&buf, input); err != nil {
		return generation.Request{}, fmt.Errorf("%w: render prompt: %v", ErrInvalidRequest, err)
	}
	return generation.Request{
		Name:   string(r.Type),
		Prompt: buf.String(),
		Schema: r.schema,
	}, nil
}

// CheckOutput validates generated output against the routine's schema.
func (r *Routine) CheckOutput(out json.RawMessage) error {
	var instance any
	if err := json.Unmarshal(out, &instance); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputMismatch, err)
	}
	if err := r.resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputMismatch, err)
	}
	return nil
}

var promptFuncs = template.FuncMap{
	"json": func(raw json.RawMessage) string { return string(raw) },
}

type routineSpec struct {
	file   string
	schema func() *jsonschema.Schema
	decode func(json.RawMessage) (any, error)
}

var routineSpecs = map[task.Type]routineSpec{
	task.TypeVivaQuestions:      {"viva_questions.tmpl", vivaQuestionsSchema, decodeAs[textRequest]},
	task.TypeCreateRubric:       {"create_rubric.tmpl", createRubricSchema, decodeAs[rubricRequest]},
	task.TypeWritingQuality:     {"writing_quality.tmpl", writingQualitySchema, decodeAs[textRequest]},
	task.TypeSummaryAndReport:   {"summary_and_report.tmpl", summaryAndReportSchema, decodeAs[textRequest]},
	task.TypeAutomatedMarksheet: {"automated_marksheet.tmpl", automatedMarksheetSchema, decodeAs[marksheetRequest]},
	task.TypeOptimizePrompt:     {"optimize_prompt.tmpl", optimizePromptSchema, decodeAs[promptRequest]},
}

// Routines builds the routine for every task type.
func Routines() (map[task.Type]*Routine, error) {
	routines := make(map[task.Type]*Routine, len(routineSpecs))
	for t, spec := range routineSpecs {
		tmpl, err := template.New(spec.file).Funcs(promptFuncs).ParseFS(promptFS, "prompts/"+spec.file)
		if err != nil {
			return nil, fmt.Errorf("parse prompt for %s: %w", t, err)
		}
		schema := spec.schema()
		resolved, err := schema.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("resolve schema for %s: %w", t, err)
		}
		routines[t] = &Routine{
			Type:     t,
			prompt:   tmpl,
			schema:   schema,
			resolved: resolved,
			decode:   spec.decode,
		}
	}
	return routines, nil
}
