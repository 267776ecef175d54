package task

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/mocks"
	"github.com/phrazzld/vivaflow/internal/queue"
	"github.com/phrazzld/vivaflow/internal/store"
)

const (
	testOutbound = "test_local_BEtoAI"
	testInbound  = "test_local_AItoBE"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fixture struct {
	submissions *mocks.MockSubmissionStore
	rubrics     *mocks.MockRubricStore
	tracker     *store.EntityStatusTracker
	broker      *queue.MemoryBroker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	subs := mocks.NewMockSubmissionStore()
	rubrics := mocks.NewMockRubricStore()
	tracker, err := store.NewEntityStatusTracker(subs, rubrics, quietLogger())
	require.NoError(t, err)

	broker := queue.NewMemoryBroker(16, 20*time.Millisecond, quietLogger())
	t.Cleanup(broker.Close)

	return &fixture{
		submissions: subs,
		rubrics:     rubrics,
		tracker:     tracker,
		broker:      broker,
	}
}

func (f *fixture) addSubmission(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.submissions.Create(context.Background(), &domain.Submission{
		ID:            id,
		ExtractedText: "An essay about normal forms.",
	}))
}

func (f *fixture) addRubric(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.rubrics.Create(context.Background(), &domain.Rubric{
		ID:    id,
		Title: "Databases coursework",
		Brief: "Design a normalised schema.",
	}))
}

func (f *fixture) setStatus(t *testing.T, id string, field domain.StatusField, statuses ...domain.Status) {
	t.Helper()
	for _, s := range statuses {
		require.NoError(t, f.tracker.SetStatus(context.Background(), id, field, s))
	}
}
