package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/store"
	"github.com/phrazzld/vivaflow/internal/task"
)

// ErrWrongEntity is returned when a task type is requested on the wrong
// kind of entity, e.g. createRubric on a submission.
var ErrWrongEntity = errors.New("task type does not apply to this entity")

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, task.ErrUnknownTaskType),
		errors.Is(err, ErrWrongEntity),
		errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, task.ErrSourceMissing):
		return http.StatusUnprocessableEntity

	case errors.Is(err, domain.ErrInvalidStatusTransition):
		return http.StatusConflict

	case errors.Is(err, task.ErrPublishFailed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, store.ErrSubmissionNotFound):
		return "Submission not found"
	case errors.Is(err, store.ErrRubricNotFound):
		return "Rubric not found"
	case errors.Is(err, store.ErrNotFound):
		return "Not found"
	case errors.Is(err, task.ErrUnknownTaskType):
		return "Unknown task type"
	case errors.Is(err, ErrWrongEntity):
		return "Task type does not apply to this entity"
	case errors.Is(err, task.ErrSourceMissing):
		return "Source material is missing; the task was marked as errored"
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		return "Task cannot be started from the current status"
	case errors.Is(err, task.ErrPublishFailed):
		return "Task queue unavailable; the task was marked as errored"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns a validator error into a short message
// naming the offending field.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// "Key: 'submitTaskRequest.EntityID' Error:Field validation for 'EntityID' failed on the 'max' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				if len(fieldParts) >= 5 {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(fieldParts[3]))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}
	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "max":
		return "too long"
	case "printascii":
		return "must be printable ASCII"
	case "excludesall":
		return "contains invalid characters"
	default:
		return "validation failed"
	}
}
