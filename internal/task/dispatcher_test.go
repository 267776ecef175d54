package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/vivaflow/internal/domain"
)

func newTestDispatcher(t *testing.T, f *fixture, registry *Registry) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(f.broker, testInbound, registry, f.tracker, quietLogger())
	require.NoError(t, err)
	return d
}

// deliver publishes body to the inbound queue, receives it and runs it
// through the dispatcher.
func deliver(t *testing.T, f *fixture, d *Dispatcher, body string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.broker.Publish(ctx, testInbound, []byte(body)))
	delivery, err := f.broker.Receive(ctx, testInbound)
	require.NoError(t, err)
	d.Process(ctx, delivery)
	assert.True(t, delivery.Acked(), "every delivery is acknowledged")
}

func countingHandler(calls *atomic.Int32, err error) Handler {
	return HandlerFunc(func(ctx context.Context, env Envelope) error {
		calls.Add(1)
		return err
	})
}

func TestNewDispatcher_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := NewDispatcher(nil, testInbound, NewRegistry(), f.tracker, nil)
	assert.ErrorIs(t, err, ErrNilReceiver)
	_, err = NewDispatcher(f.broker, "", NewRegistry(), f.tracker, nil)
	assert.ErrorIs(t, err, ErrEmptyQueue)
	_, err = NewDispatcher(f.broker, testInbound, nil, f.tracker, nil)
	assert.ErrorIs(t, err, ErrNilRegistry)
	_, err = NewDispatcher(f.broker, testInbound, NewRegistry(), nil, nil)
	assert.ErrorIs(t, err, ErrNilTracker)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var calls atomic.Int32
	require.NoError(t, r.Register(TypeVivaQuestions, countingHandler(&calls, nil)))
	require.NoError(t, r.Register(TypeCreateRubric, countingHandler(&calls, nil)))

	err := r.Register(TypeVivaQuestions, countingHandler(&calls, nil))
	assert.ErrorIs(t, err, ErrDuplicateHandler)
	assert.Error(t, r.Register(TypeSummaryAndReport, nil))

	_, ok := r.Lookup(TypeVivaQuestions)
	assert.True(t, ok)
	_, ok = r.Lookup(TypeOptimizePrompt)
	assert.False(t, ok)
	assert.Equal(t, []Type{TypeCreateRubric, TypeVivaQuestions}, r.Types())
}

func TestDispatcher_AcksExactlyOnceRegardlessOfOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler func(calls *atomic.Int32) Handler
	}{
		{"success", func(c *atomic.Int32) Handler { return countingHandler(c, nil) }},
		{"error", func(c *atomic.Int32) Handler { return countingHandler(c, errors.New("db down")) }},
		{"panic", func(c *atomic.Int32) Handler {
			return HandlerFunc(func(ctx context.Context, env Envelope) error {
				c.Add(1)
				panic("boom")
			})
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.addSubmission(t, "sub-1")

			var calls atomic.Int32
			r := NewRegistry()
			require.NoError(t, r.Register(TypeVivaQuestions, tc.handler(&calls)))
			d := newTestDispatcher(t, f, r)

			deliver(t, f, d, `{"type":"vivaQuestions","data":{"questions":[]},"uuid":"sub-1"}`)

			assert.Equal(t, int32(1), calls.Load())
			assert.Equal(t, 1, f.broker.Acked(testInbound))
			assert.Equal(t, 0, f.broker.InFlight(testInbound))
			assert.Equal(t, 0, f.broker.Len(testInbound))
		})
	}
}

func TestDispatcher_MalformedMessageAckedWithoutHandler(t *testing.T) {
	t.Parallel()

	bodies := []string{
		`{not json`,
		`{"data":{},"uuid":"sub-1"}`,
		`{"type":"vivaQuestions","data":{}}`,
		`"just a string"`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.addSubmission(t, "sub-1")

			var calls atomic.Int32
			r := NewRegistry()
			require.NoError(t, r.Register(TypeVivaQuestions, countingHandler(&calls, nil)))
			d := newTestDispatcher(t, f, r)

			deliver(t, f, d, body)

			assert.Equal(t, int32(0), calls.Load(), "no handler runs for a malformed message")
			assert.Equal(t, 1, f.broker.Acked(testInbound))
			assert.Equal(t, 0, f.broker.Len(testInbound))
			assert.Empty(t, f.submissions.History(), "no status changes anywhere")
		})
	}
}

func TestDispatcher_UnknownTypeDropped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var calls atomic.Int32
	r := NewRegistry()
	require.NoError(t, r.Register(TypeVivaQuestions, countingHandler(&calls, nil)))
	d := newTestDispatcher(t, f, r)

	deliver(t, f, d, `{"type":"translateEssay","data":{},"uuid":"sub-1"}`)
	deliver(t, f, d, `{"type":"optimizePrompt","data":{},"uuid":"rub-1"}`)

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, 2, f.broker.Acked(testInbound))
}

func TestDispatcher_MarksInProgressEntityFailedWhenHandlerErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addSubmission(t, "sub-1")
	f.setStatus(t, "sub-1", domain.FieldSummaryStatus, domain.StatusInProgress)

	r := NewRegistry()
	require.NoError(t, r.Register(TypeSummaryAndReport, HandlerFunc(func(ctx context.Context, env Envelope) error {
		panic("handler bug")
	})))
	d := newTestDispatcher(t, f, r)

	deliver(t, f, d, `{"type":"summaryAndReport","data":{"summary":"x"},"uuid":"sub-1"}`)

	assert.Equal(t, domain.StatusError, f.submissions.Status("sub-1", domain.FieldSummaryStatus),
		"an entity is not left INPROGRESS after a handler failure")
}

func TestDispatcher_LeavesTerminalStatusAloneWhenHandlerErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addSubmission(t, "sub-1")
	f.setStatus(t, "sub-1", domain.FieldVivaStatus, domain.StatusInProgress, domain.StatusError)

	var calls atomic.Int32
	r := NewRegistry()
	require.NoError(t, r.Register(TypeVivaQuestions, countingHandler(&calls, errors.New("no questions"))))
	d := newTestDispatcher(t, f, r)

	deliver(t, f, d, `{"type":"vivaQuestions","data":{"questions":[]},"uuid":"sub-1"}`)

	assert.Equal(t, domain.StatusError, f.submissions.Status("sub-1", domain.FieldVivaStatus))
	assert.Len(t, f.submissions.History(), 2, "dispatcher writes nothing when the handler already set ERROR")
}

func TestDispatcher_RunConsumesUntilCancelled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var calls atomic.Int32
	r := NewRegistry()
	require.NoError(t, r.Register(TypeVivaQuestions, countingHandler(&calls, nil)))
	d := newTestDispatcher(t, f, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.broker.Publish(ctx, testInbound,
			[]byte(`{"type":"vivaQuestions","data":{},"uuid":"sub-1"}`)))
	}
	require.NoError(t, f.broker.Publish(ctx, testInbound, []byte(`garbage`)))

	require.Eventually(t, func() bool { return f.broker.Acked(testInbound) == 4 },
		2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after cancellation")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestMiddlewareOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, env Envelope) error {
				order = append(order, name)
				return next.Handle(ctx, env)
			})
		}
	}
	h := Chain(HandlerFunc(func(ctx context.Context, env Envelope) error {
		order = append(order, "handler")
		return nil
	}), mw("outer"), mw("inner"))

	require.NoError(t, h.Handle(context.Background(), Envelope{Type: TypeVivaQuestions, UUID: "x"}))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := Chain(HandlerFunc(func(ctx context.Context, env Envelope) error {
		panic("nil map write")
	}), Recover())

	err := h.Handle(context.Background(), Envelope{Type: TypeVivaQuestions, UUID: "x"})
	assert.ErrorIs(t, err, ErrHandlerPanic)
	assert.Contains(t, err.Error(), "nil map write")
}
