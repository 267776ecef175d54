package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/store"
	"github.com/phrazzld/vivaflow/internal/task"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{store.ErrRubricNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", store.ErrSubmissionNotFound), http.StatusNotFound},
		{task.ErrUnknownTaskType, http.StatusBadRequest},
		{ErrWrongEntity, http.StatusBadRequest},
		{task.ErrSourceMissing, http.StatusUnprocessableEntity},
		{domain.ErrInvalidStatusTransition, http.StatusConflict},
		{task.ErrPublishFailed, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err), tc.err.Error())
	}
}

func TestGetSafeErrorMessage_HidesInternals(t *testing.T) {
	t.Parallel()
	err := errors.New("pq: relation \"submissions\" does not exist")
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(err))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()
	err := errors.New("Key: 'submitTaskRequest.EntityID' Error:Field validation for 'EntityID' failed on the 'required' tag")
	assert.Equal(t, "Invalid EntityID: required field", SanitizeValidationError(err))
	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("other")))
}
