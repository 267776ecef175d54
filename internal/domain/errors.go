package domain

import "errors"

var (
	// ErrValidation is wrapped by every entity and artifact validation error,
	// so callers can classify them without listing each one.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an entity ID is empty.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidRubricData is returned when generated rubric criteria are not
	// a JSON object with a non-empty "criteria" array.
	ErrInvalidRubricData = errors.New("invalid rubric data")
)
