package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Rubric holds the marking criteria for an assignment. The criteria themselves
// (RubricData) and the optimised tutor prompt are produced by AI tasks.
type Rubric struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Brief           string          `json:"-"`
	Prompt          string          `json:"prompt,omitempty"`
	RubricData      json.RawMessage `json:"rubric_data,omitempty"`
	OptimizedPrompt string          `json:"optimized_prompt,omitempty"`
	Status          Status          `json:"status"`
	PromptStatus    Status          `json:"prompt_status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// StatusOf returns the value of the given status field.
func (r *Rubric) StatusOf(field StatusField) (Status, error) {
	switch field {
	case FieldRubricStatus:
		return r.Status, nil
	case FieldPromptStatus:
		return r.PromptStatus, nil
	default:
		return "", ErrInvalidStatusField
	}
}

// SetStatus changes a status field after checking the transition rule.
func (r *Rubric) SetStatus(field StatusField, status Status) error {
	current, err := r.StatusOf(field)
	if err != nil {
		return err
	}
	if err := ValidateTransition(current, status); err != nil {
		return err
	}

	if field == FieldRubricStatus {
		r.Status = status
	} else {
		r.PromptStatus = status
	}
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// ValidateRubricData checks that data is a JSON object carrying a non-empty
// "criteria" array. Other keys are kept as-is.
func ValidateRubricData(data json.RawMessage) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidRubricData)
	}
	var shape struct {
		Criteria []json.RawMessage `json:"criteria"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRubricData, err)
	}
	if len(shape.Criteria) == 0 {
		return fmt.Errorf("%w: no criteria", ErrInvalidRubricData)
	}
	return nil
}
