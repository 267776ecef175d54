package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/phrazzld/vivaflow/internal/config"
	"github.com/phrazzld/vivaflow/internal/generation"
)

// fakeModels replays queued responses.
type fakeModels struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
	lastCfg   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(
	_ context.Context,
	_ string,
	_ []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	f.lastCfg = cfg
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var resp *genai.GenerateContentResponse
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func testConfig() config.LLMConfig {
	return config.LLMConfig{
		Provider:          "gemini",
		GeminiAPIKey:      "key",
		ModelName:         "gemini-2.0-flash",
		MaxRetries:        2,
		RetryDelaySeconds: 1,
	}
}

func testRequest() generation.Request {
	return generation.Request{
		Name:   "summaryAndReport",
		Prompt: "Summarise this",
		Schema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"summary"},
			Properties: map[string]*jsonschema.Schema{
				"summary": {Type: "string"},
			},
		},
	}
}

func TestGenerate_Success(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse(` {"summary":"ok"} `)}}
	g := newGenerator(slog.New(slog.DiscardHandler), models, testConfig())

	out, err := g.Generate(context.Background(), testRequest())

	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"ok"}`, string(out))
	require.NotNil(t, models.lastCfg)
	assert.Equal(t, "application/json", models.lastCfg.ResponseMIMEType)
	assert.Equal(t, genai.TypeObject, models.lastCfg.ResponseSchema.Type)
}

func TestGenerate_SafetyBlockIsNotRetried(t *testing.T) {
	t.Parallel()

	blocked := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
	}
	models := &fakeModels{responses: []*genai.GenerateContentResponse{blocked, blocked}}
	g := newGenerator(slog.New(slog.DiscardHandler), models, testConfig())

	_, err := g.Generate(context.Background(), testRequest())

	assert.ErrorIs(t, err, generation.ErrContentBlocked)
	assert.Equal(t, 1, models.calls)
}

func TestGenerate_BadRequestIsPermanent(t *testing.T) {
	t.Parallel()

	models := &fakeModels{errs: []error{genai.APIError{Code: 400, Message: "bad schema"}}}
	g := newGenerator(slog.New(slog.DiscardHandler), models, testConfig())

	_, err := g.Generate(context.Background(), testRequest())

	assert.ErrorIs(t, err, generation.ErrInvalidRequest)
	assert.Equal(t, 1, models.calls)
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	t.Parallel()

	models := &fakeModels{}
	g := newGenerator(slog.New(slog.DiscardHandler), models, testConfig())

	_, err := g.Generate(context.Background(), generation.Request{Schema: testRequest().Schema})

	assert.ErrorIs(t, err, generation.ErrEmptyPrompt)
	assert.Zero(t, models.calls)
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		want    string
		wantErr error
	}{
		{"nil", nil, "", generation.ErrInvalidResponse},
		{"no candidates", &genai.GenerateContentResponse{}, "", generation.ErrInvalidResponse},
		{"prompt blocked", &genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: "SAFETY"},
		}, "", generation.ErrContentBlocked},
		{"not json", textResponse("Sure! Here you go"), "", generation.ErrInvalidResponse},
		{"multi part", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: `{"a":`}, {Text: `1}`}}},
		}}}, `{"a":1}`, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out, err := parseResponse(tc.resp)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(out))
		})
	}
}

func TestNewGeminiGenerator_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewGeminiGenerator(context.Background(), nil, testConfig())
	assert.Error(t, err)

	cfg := testConfig()
	cfg.GeminiAPIKey = ""
	_, err = NewGeminiGenerator(context.Background(), slog.Default(), cfg)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	cfg = testConfig()
	cfg.ModelName = ""
	_, err = NewGeminiGenerator(context.Background(), slog.Default(), cfg)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestToGenaiSchema(t *testing.T) {
	t.Parallel()

	lo, hi := 0.0, 100.0
	s := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"questions"},
		Properties: map[string]*jsonschema.Schema{
			"questions": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"question_category": {Type: "string", Enum: []any{"theory", "application"}},
					},
				},
			},
			"score": {Type: "number", Minimum: &lo, Maximum: &hi},
		},
	}

	out := toGenaiSchema(s)

	assert.Equal(t, genai.TypeObject, out.Type)
	assert.Equal(t, []string{"questions"}, out.Required)
	assert.Equal(t, genai.TypeArray, out.Properties["questions"].Type)
	item := out.Properties["questions"].Items
	assert.Equal(t, []string{"theory", "application"}, item.Properties["question_category"].Enum)
	assert.Equal(t, &hi, out.Properties["score"].Maximum)
	assert.Nil(t, toGenaiSchema(nil))

	_, err := json.Marshal(out)
	assert.NoError(t, err)
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, classifyError(genai.APIError{Code: 403}), generation.ErrInvalidRequest)
	assert.NotErrorIs(t, classifyError(genai.APIError{Code: 429}), generation.ErrInvalidRequest)
	assert.NotErrorIs(t, classifyError(errors.New("eof")), generation.ErrInvalidRequest)
}
