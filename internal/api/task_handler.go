package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/vivaflow/internal/api/shared"
	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/platform/logger"
	"github.com/phrazzld/vivaflow/internal/task"
)

// TaskSubmitter requests AI work for an entity.
type TaskSubmitter interface {
	Submit(ctx context.Context, t task.Type, entityID string) (task.SubmitResult, error)
}

// SubmissionReader loads submissions.
type SubmissionReader interface {
	GetByID(ctx context.Context, id string) (*domain.Submission, error)
}

// RubricReader loads rubrics.
type RubricReader interface {
	GetByID(ctx context.Context, id string) (*domain.Rubric, error)
}

// QuestionLister lists the viva questions generated for a submission.
type QuestionLister interface {
	ListVivaQuestions(ctx context.Context, submissionID string) ([]*domain.VivaQuestion, error)
}

type submitTaskRequest struct {
	EntityID string `validate:"required,max=128,printascii,excludesall=/"`
	TaskType string `validate:"required"`
}

// SubmitTaskResponse reports what happened to a task request.
type SubmitTaskResponse struct {
	EntityID string `json:"entity_id"`
	TaskType string `json:"task_type"`
	Result   string `json:"result"`
}

// VivaQuestionResponse is one generated viva question.
type VivaQuestionResponse struct {
	ID               string    `json:"id"`
	QuestionText     string    `json:"question_text"`
	QuestionCategory string    `json:"question_category"`
	CreatedAt        time.Time `json:"created_at"`
}

// SubmissionResponse is a submission's task statuses and generated questions.
// Questions may be present while viva_status is ERROR when a run saved only
// part of its output.
type SubmissionResponse struct {
	ID            string                 `json:"id"`
	RubricID      string                 `json:"rubric_id,omitempty"`
	Statuses      map[string]string      `json:"statuses"`
	VivaQuestions []VivaQuestionResponse `json:"viva_questions"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// RubricResponse is a rubric's task statuses and generated content.
type RubricResponse struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Statuses        map[string]string `json:"statuses"`
	RubricData      json.RawMessage   `json:"rubric_data,omitempty"`
	OptimizedPrompt string            `json:"optimized_prompt,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// TaskHandler serves the task endpoints.
type TaskHandler struct {
	submitter   TaskSubmitter
	submissions SubmissionReader
	rubrics     RubricReader
	questions   QuestionLister
	logger      *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(
	submitter TaskSubmitter,
	submissions SubmissionReader,
	rubrics RubricReader,
	questions QuestionLister,
	logger *slog.Logger,
) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		submitter:   submitter,
		submissions: submissions,
		rubrics:     rubrics,
		questions:   questions,
		logger:      logger.With("component", "task_handler"),
	}
}

// SubmitSubmissionTask handles POST /api/submissions/{id}/tasks/{type}.
func (h *TaskHandler) SubmitSubmissionTask(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, false)
}

// SubmitRubricTask handles POST /api/rubrics/{id}/tasks/{type}.
func (h *TaskHandler) SubmitRubricTask(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, true)
}

func (h *TaskHandler) submit(w http.ResponseWriter, r *http.Request, rubricRoute bool) {
	req := submitTaskRequest{
		EntityID: chi.URLParam(r, "id"),
		TaskType: chi.URLParam(r, "type"),
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	t, err := task.ParseType(req.TaskType)
	if err == nil && t.IsRubricTask() != rubricRoute {
		err = ErrWrongEntity
	}
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	result, err := h.submitter.Submit(r.Context(), t, req.EntityID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("task requested",
		"task_type", string(t),
		"entity_id", req.EntityID,
		"result", string(result))

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitTaskResponse{
		EntityID: req.EntityID,
		TaskType: string(t),
		Result:   string(result),
	})
}

// GetSubmission handles GET /api/submissions/{id}.
func (h *TaskHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := h.submissions.GetByID(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	questions, err := h.questions.ListVivaQuestions(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := SubmissionResponse{
		ID:            sub.ID,
		RubricID:      sub.RubricID,
		Statuses:      make(map[string]string, len(domain.SubmissionFields)),
		VivaQuestions: make([]VivaQuestionResponse, 0, len(questions)),
		CreatedAt:     sub.CreatedAt,
		UpdatedAt:     sub.UpdatedAt,
	}
	for _, f := range domain.SubmissionFields {
		s, _ := sub.StatusOf(f)
		resp.Statuses[string(f)] = string(s)
	}
	for _, q := range questions {
		resp.VivaQuestions = append(resp.VivaQuestions, VivaQuestionResponse{
			ID:               q.ID,
			QuestionText:     q.QuestionText,
			QuestionCategory: q.QuestionCategory,
			CreatedAt:        q.CreatedAt,
		})
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetRubric handles GET /api/rubrics/{id}.
func (h *TaskHandler) GetRubric(w http.ResponseWriter, r *http.Request) {
	rubric, err := h.rubrics.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := RubricResponse{
		ID:              rubric.ID,
		Title:           rubric.Title,
		Statuses:        make(map[string]string, len(domain.RubricFields)),
		RubricData:      rubric.RubricData,
		OptimizedPrompt: rubric.OptimizedPrompt,
		CreatedAt:       rubric.CreatedAt,
		UpdatedAt:       rubric.UpdatedAt,
	}
	for _, f := range domain.RubricFields {
		s, _ := rubric.StatusOf(f)
		resp.Statuses[string(f)] = string(s)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
