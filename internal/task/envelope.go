package task

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/phrazzld/vivaflow/internal/domain"
)

// Type is the kind of AI work an envelope carries.
type Type string

// Task types exchanged with the worker.
const (
	TypeVivaQuestions      Type = "vivaQuestions"
	TypeCreateRubric       Type = "createRubric"
	TypeWritingQuality     Type = "writingQuality"
	TypeSummaryAndReport   Type = "summaryAndReport"
	TypeAutomatedMarksheet Type = "automatedMarksheet"
	TypeOptimizePrompt     Type = "optimizePrompt"
)

// AllTypes lists every task type in a stable order.
var AllTypes = []Type{
	TypeVivaQuestions,
	TypeCreateRubric,
	TypeWritingQuality,
	TypeSummaryAndReport,
	TypeAutomatedMarksheet,
	TypeOptimizePrompt,
}

var statusFields = map[Type]domain.StatusField{
	TypeVivaQuestions:      domain.FieldVivaStatus,
	TypeWritingQuality:     domain.FieldWritingQualityStatus,
	TypeSummaryAndReport:   domain.FieldSummaryStatus,
	TypeAutomatedMarksheet: domain.FieldMarksheetStatus,
	TypeCreateRubric:       domain.FieldRubricStatus,
	TypeOptimizePrompt:     domain.FieldPromptStatus,
}

// IsValid reports whether t is a known task type.
func (t Type) IsValid() bool {
	_, ok := statusFields[t]
	return ok
}

// StatusField returns the entity status column a task type drives.
func (t Type) StatusField() (domain.StatusField, bool) {
	f, ok := statusFields[t]
	return f, ok
}

// IsRubricTask reports whether the envelope's uuid is a rubric id rather
// than a submission id.
func (t Type) IsRubricTask() bool {
	f, ok := statusFields[t]
	return ok && domain.IsRubricField(f)
}

// ParseType converts s to a Type, rejecting unknown values.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTaskType, s)
	}
	return t, nil
}

// Envelope is the unit exchanged over the broker. UUID is always the id of
// the entity the task concerns, so a response finds its entity without a
// correlation table.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
	UUID string          `json:"uuid"`
}

// Envelope errors
var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrUnknownTaskType   = errors.New("unknown task type")
)

// NewEnvelope builds an envelope, encoding data as the payload.
func NewEnvelope(t Type, entityID string, data any) (Envelope, error) {
	if entityID == "" {
		return Envelope{}, fmt.Errorf("%w: empty uuid", ErrMalformedEnvelope)
	}
	if t == "" {
		return Envelope{}, fmt.Errorf("%w: empty type", ErrMalformedEnvelope)
	}

	var raw json.RawMessage
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: encode data: %v", ErrMalformedEnvelope, err)
		}
		raw = b
	}
	if !isJSONObject(raw) {
		return Envelope{}, fmt.Errorf("%w: data must be a JSON object", ErrMalformedEnvelope)
	}

	return Envelope{Type: t, Data: raw, UUID: entityID}, nil
}

// Marshal encodes the envelope for the wire. Identical envelopes always
// encode to identical bytes.
func (e Envelope) Marshal() ([]byte, error) {
	var data bytes.Buffer
	if err := json.Compact(&data, e.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return json.Marshal(Envelope{Type: e.Type, Data: data.Bytes(), UUID: e.UUID})
}

// ParseEnvelope decodes a wire message. It rejects invalid JSON and
// envelopes missing type, uuid or an object-valued data field. Unknown
// types parse successfully; routing decides what to do with them.
func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	if env.UUID == "" {
		return Envelope{}, fmt.Errorf("%w: missing uuid", ErrMalformedEnvelope)
	}
	if !isJSONObject(env.Data) {
		return Envelope{}, fmt.Errorf("%w: data must be a JSON object", ErrMalformedEnvelope)
	}
	return env, nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}

// Error codes carried by error-shaped responses.
const (
	ErrorCodeContentBlocked   = "content_blocked"
	ErrorCodeInvalidResponse  = "invalid_response"
	ErrorCodeGenerationFailed = "generation_failed"
	ErrorCodeInvalidRequest   = "invalid_request"
	ErrorCodeUnsupportedType  = "unsupported_type"
)

// ErrorDetail describes why the worker could not produce a result.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements error.
func (e *ErrorDetail) Error() string {
	return e.Code + ": " + e.Message
}

type errorPayload struct {
	Error *ErrorDetail `json:"error"`
}

// ErrorData builds the data of an error-shaped response. Every task type
// uses this same shape, so the application can recognise failures without
// knowing the type's success schema.
func ErrorData(code, message string) json.RawMessage {
	b, _ := json.Marshal(errorPayload{Error: &ErrorDetail{Code: code, Message: message}})
	return b
}

// ResponseError reports whether data is an error-shaped response.
func ResponseError(data json.RawMessage) (*ErrorDetail, bool) {
	var p errorPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Error == nil || p.Error.Code == "" {
		return nil, false
	}
	return p.Error, true
}
