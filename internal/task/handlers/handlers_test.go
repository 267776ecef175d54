package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/mocks"
	"github.com/phrazzld/vivaflow/internal/store"
	"github.com/phrazzld/vivaflow/internal/task"
)

type env struct {
	submissions *mocks.MockSubmissionStore
	rubrics     *mocks.MockRubricStore
	artifacts   *mocks.MockArtifactStore
	tracker     *store.EntityStatusTracker
	registry    *task.Registry
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	e := &env{
		submissions: mocks.NewMockSubmissionStore(),
		rubrics:     mocks.NewMockRubricStore(),
		artifacts:   mocks.NewMockArtifactStore(),
	}
	var err error
	e.tracker, err = store.NewEntityStatusTracker(e.submissions, e.rubrics, logger)
	require.NoError(t, err)
	e.registry, err = NewRegistry(Dependencies{
		Tracker:   e.tracker,
		Rubrics:   e.rubrics,
		Artifacts: e.artifacts,
		Logger:    logger,
	})
	require.NoError(t, err)
	return e
}

// inProgressSubmission creates a submission whose field is INPROGRESS.
func (e *env) inProgressSubmission(t *testing.T, id string, field domain.StatusField) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.submissions.Create(ctx, &domain.Submission{ID: id, ExtractedText: "essay"}))
	require.NoError(t, e.tracker.SetStatus(ctx, id, field, domain.StatusInProgress))
}

func (e *env) inProgressRubric(t *testing.T, id string, field domain.StatusField) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.rubrics.Create(ctx, &domain.Rubric{ID: id, Title: "Coursework"}))
	require.NoError(t, e.tracker.SetStatus(ctx, id, field, domain.StatusInProgress))
}

func (e *env) handle(t *testing.T, taskType task.Type, uuid, data string) error {
	t.Helper()
	h, ok := e.registry.Lookup(taskType)
	require.True(t, ok)
	return h.Handle(context.Background(), task.Envelope{Type: taskType, UUID: uuid, Data: json.RawMessage(data)})
}

func TestNewRegistry_CoversEveryType(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	for _, tt := range task.AllTypes {
		_, ok := e.registry.Lookup(tt)
		assert.True(t, ok, "handler registered for %s", tt)
	}

	_, err := NewRegistry(Dependencies{})
	assert.ErrorIs(t, err, ErrNilTracker)
}

func TestVivaQuestions_SingleQuestionCompletes(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.inProgressSubmission(t, "sub-123", domain.FieldVivaStatus)

	err := e.handle(t, task.TypeVivaQuestions, "sub-123",
		`{"questions":[{"question_text":"Explain 3NF","question_category":"theory"}]}`)

	require.NoError(t, err)
	questions, err := e.artifacts.ListVivaQuestions(context.Background(), "sub-123")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "sub-123", questions[0].SubmissionID)
	assert.Equal(t, "Explain 3NF", questions[0].QuestionText)
	assert.Equal(t, domain.StatusGenerated, questions[0].Status)
	assert.Equal(t, domain.StatusCompleted, e.submissions.Status("sub-123", domain.FieldVivaStatus))
}

func TestVivaQuestions_EmptyListErrors(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.inProgressSubmission(t, "sub-456", domain.FieldVivaStatus)

	err := e.handle(t, task.TypeVivaQuestions, "sub-456", `{"questions":[]}`)

	assert.ErrorIs(t, err, ErrInvalidPayload)
	questions, _ := e.artifacts.ListVivaQuestions(context.Background(), "sub-456")
	assert.Empty(t, questions, "zero question rows created")
	assert.Equal(t, domain.StatusError, e.submissions.Status("sub-456", domain.FieldVivaStatus))
}

func TestVivaQuestions_InvalidItemPersistsNothing(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.inProgressSubmission(t, "sub-1", domain.FieldVivaStatus)

	err := e.handle(t, task.TypeVivaQuestions, "sub-1",
		`{"questions":[{"question_text":"Explain 3NF","question_category":"theory"},{"question_text":""}]}`)

	assert.ErrorIs(t, err, ErrInvalidPayload)
	questions, _ := e.artifacts.ListVivaQuestions(context.Background(), "sub-1")
	assert.Empty(t, questions)
	assert.Equal(t, domain.StatusError, e.submissions.Status("sub-1", domain.FieldVivaStatus))
}

func TestVivaQuestions_PartialPersistenceKeepsSavedRows(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.inProgressSubmission(t, "sub-1", domain.FieldVivaStatus)

	saved := 0
	e.artifacts.CreateVivaQuestionFn = func(ctx context.Context, q *domain.VivaQuestion) error {
		if saved == 2 {
			return errors.New("connection reset")
		}
		saved++
		return nil
	}

	err := e.handle(t, task.TypeVivaQuestions, "sub-1", `{"questions":[
		{"question_text":"Q1","question_category":"theory"},
		{"question_text":"Q2","question_category":"theory"},
		{"question_text":"Q3","question_category":"practice"},
		{"question_text":"Q4","question_category":"practice"}]}`)

	assert.ErrorIs(t, err, ErrPersistFailed)
	questions, _ := e.artifacts.ListVivaQuestions(context.Background(), "sub-1")
	assert.Len(t, questions, 2, "questions saved before the failure remain")
	assert.Equal(t, domain.StatusError, e.submissions.Status("sub-1", domain.FieldVivaStatus))
}

func TestCreateRubric_StoresPayloadAsGiven(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.inProgressRubric(t, "rub-789", domain.FieldRubricStatus)

	payload := `{"criteria":[{"name":"Normalisation","weight":40,"levels":["fail","pass","merit"]}],"total":100}`
	err := e.handle(t, task.TypeCreateRubric, "rub-789", payload)

	require.NoError(t, err)
	r, err := e.rubrics.GetByID(context.Background(), "rub-789")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, r.Status)
	assert.JSONEq(t, payload, string(r.RubricData))
	assert.Equal(t, domain.StatusPending, r.PromptStatus, "other status fields are untouched")
}

func TestCreateRubric_MissingCriteriaErrors(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.inProgressRubric(t, "rub-1", domain.FieldRubricStatus)

	err := e.handle(t, task.TypeCreateRubric, "rub-1", `{"title":"no criteria"}`)

	assert.ErrorIs(t, err, ErrInvalidPayload)
	r, _ := e.rubrics.GetByID(context.Background(), "rub-1")
	assert.Equal(t, domain.StatusError, r.Status)
	assert.Empty(t, r.RubricData)
}

func TestOptimizePrompt(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.inProgressRubric(t, "rub-1", domain.FieldPromptStatus)

	require.NoError(t, e.handle(t, task.TypeOptimizePrompt, "rub-1",
		`{"optimized_prompt":"Ask the student to justify each normal form."}`))

	r, _ := e.rubrics.GetByID(context.Background(), "rub-1")
	assert.Equal(t, "Ask the student to justify each normal form.", r.OptimizedPrompt)
	assert.Equal(t, domain.StatusCompleted, r.PromptStatus)
}

func TestWritingQuality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		data       string
		wantStatus domain.Status
		wantErr    error
		wantSaved  int
	}{
		{"valid", `{"overall_score":72.5,"feedback":"Clear","metrics":{"clarity":8}}`, domain.StatusCompleted, nil, 1},
		{"zero score is valid", `{"overall_score":0,"feedback":"Unreadable"}`, domain.StatusCompleted, nil, 1},
		{"missing score", `{"feedback":"Clear"}`, domain.StatusError, ErrInvalidPayload, 0},
		{"score above range", `{"overall_score":140,"feedback":"Clear"}`, domain.StatusError, ErrInvalidPayload, 0},
		{"missing feedback", `{"overall_score":50}`, domain.StatusError, ErrInvalidPayload, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := newEnv(t)
			e.inProgressSubmission(t, "sub-1", domain.FieldWritingQualityStatus)

			err := e.handle(t, task.TypeWritingQuality, "sub-1", tc.data)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.wantStatus, e.submissions.Status("sub-1", domain.FieldWritingQualityStatus))
			assert.Len(t, e.artifacts.WritingQualityReports(), tc.wantSaved)
		})
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.inProgressSubmission(t, "sub-1", domain.FieldSummaryStatus)

	require.NoError(t, e.handle(t, task.TypeSummaryAndReport, "sub-1",
		`{"summary":"A study of normal forms","report":{"strengths":["depth"]}}`))

	summaries := e.artifacts.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, "sub-1", summaries[0].SubmissionID)
	assert.Equal(t, domain.StatusCompleted, e.submissions.Status("sub-1", domain.FieldSummaryStatus))
}

func TestMarksheet(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.inProgressSubmission(t, "sub-1", domain.FieldMarksheetStatus)

	require.NoError(t, e.handle(t, task.TypeAutomatedMarksheet, "sub-1", `{"marks":[
		{"criterion":"Analysis","score":7,"max_score":10},
		{"criterion":"Referencing","score":0,"max_score":5,"comment":"none given"}]}`))

	sheets := e.artifacts.Marksheets()
	require.Len(t, sheets, 1)
	assert.Equal(t, 7.0, sheets[0].TotalScore)
	assert.Equal(t, 15.0, sheets[0].MaxScore)
	assert.Equal(t, domain.StatusCompleted, e.submissions.Status("sub-1", domain.FieldMarksheetStatus))
}

func TestMarksheet_ScoreAboveMaxErrors(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.inProgressSubmission(t, "sub-1", domain.FieldMarksheetStatus)

	err := e.handle(t, task.TypeAutomatedMarksheet, "sub-1",
		`{"marks":[{"criterion":"Analysis","score":12,"max_score":10}]}`)

	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Empty(t, e.artifacts.Marksheets())
	assert.Equal(t, domain.StatusError, e.submissions.Status("sub-1", domain.FieldMarksheetStatus))
}

func TestMarksheet_PersistFailureErrors(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.inProgressSubmission(t, "sub-1", domain.FieldMarksheetStatus)
	e.artifacts.SaveMarksheetFn = func(ctx context.Context, m *domain.Marksheet) error {
		return errors.New("deadlock detected")
	}

	err := e.handle(t, task.TypeAutomatedMarksheet, "sub-1",
		`{"marks":[{"criterion":"Analysis","score":5,"max_score":10}]}`)

	assert.ErrorIs(t, err, ErrPersistFailed)
	assert.Equal(t, domain.StatusError, e.submissions.Status("sub-1", domain.FieldMarksheetStatus))
}

func TestErrorShapedResponseFailsEveryType(t *testing.T) {
	t.Parallel()

	for _, tt := range task.AllTypes {
		t.Run(string(tt), func(t *testing.T) {
			t.Parallel()
			e := newEnv(t)
			field, _ := tt.StatusField()
			if tt.IsRubricTask() {
				e.inProgressRubric(t, "id-1", field)
			} else {
				e.inProgressSubmission(t, "id-1", field)
			}

			data := task.ErrorData(task.ErrorCodeContentBlocked, "refused")
			err := e.handle(t, tt, "id-1", string(data))

			assert.ErrorIs(t, err, ErrWorkerFailure)
			var detail *task.ErrorDetail
			require.ErrorAs(t, err, &detail)
			assert.Equal(t, task.ErrorCodeContentBlocked, detail.Code)

			status, err := e.tracker.Status(context.Background(), "id-1", field)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusError, status)
		})
	}
}

func TestDuplicateResponseIgnored(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.inProgressSubmission(t, "sub-123", domain.FieldVivaStatus)
	data := `{"questions":[{"question_text":"Explain 3NF","question_category":"theory"}]}`

	require.NoError(t, e.handle(t, task.TypeVivaQuestions, "sub-123", data))
	require.NoError(t, e.handle(t, task.TypeVivaQuestions, "sub-123", data), "redelivery is a no-op")

	questions, _ := e.artifacts.ListVivaQuestions(context.Background(), "sub-123")
	assert.Len(t, questions, 1)
	assert.Equal(t, domain.StatusCompleted, e.submissions.Status("sub-123", domain.FieldVivaStatus))
}

func TestResponseForUnknownEntity(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	err := e.handle(t, task.TypeSummaryAndReport, "ghost", `{"summary":"x"}`)

	assert.True(t, store.IsNotFoundError(err))
	assert.Empty(t, e.artifacts.Summaries())
}
