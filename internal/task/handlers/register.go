package handlers

import (
	"log/slog"

	"github.com/phrazzld/vivaflow/internal/store"
	"github.com/phrazzld/vivaflow/internal/task"
)

// Dependencies are the collaborators the handlers need.
type Dependencies struct {
	Tracker   task.StatusTracker
	Rubrics   store.RubricStore
	Artifacts store.ArtifactStore
	Logger    *slog.Logger
}

// NewRegistry builds a registry with a handler for every task type.
func NewRegistry(deps Dependencies) (*task.Registry, error) {
	viva, err := NewVivaQuestionsHandler(deps.Tracker, deps.Artifacts, deps.Logger)
	if err != nil {
		return nil, err
	}
	rubric, err := NewCreateRubricHandler(deps.Tracker, deps.Rubrics, deps.Logger)
	if err != nil {
		return nil, err
	}
	writing, err := NewWritingQualityHandler(deps.Tracker, deps.Artifacts, deps.Logger)
	if err != nil {
		return nil, err
	}
	summary, err := NewSummaryHandler(deps.Tracker, deps.Artifacts, deps.Logger)
	if err != nil {
		return nil, err
	}
	marksheet, err := NewMarksheetHandler(deps.Tracker, deps.Artifacts, deps.Logger)
	if err != nil {
		return nil, err
	}
	prompt, err := NewOptimizePromptHandler(deps.Tracker, deps.Rubrics, deps.Logger)
	if err != nil {
		return nil, err
	}

	r := task.NewRegistry()
	for t, h := range map[task.Type]task.Handler{
		task.TypeVivaQuestions:      viva,
		task.TypeCreateRubric:       rubric,
		task.TypeWritingQuality:     writing,
		task.TypeSummaryAndReport:   summary,
		task.TypeAutomatedMarksheet: marksheet,
		task.TypeOptimizePrompt:     prompt,
	} {
		if err := r.Register(t, h); err != nil {
			return nil, err
		}
	}
	return r, nil
}
