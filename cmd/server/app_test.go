package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/vivaflow/internal/api"
	"github.com/phrazzld/vivaflow/internal/config"
	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/mocks"
	"github.com/phrazzld/vivaflow/internal/queue"
	"github.com/phrazzld/vivaflow/internal/task"
	"github.com/phrazzld/vivaflow/internal/worker"
)

const testSubmissionID = "sub-1"

type testApp struct {
	app         *application
	cfg         *config.Config
	broker      *queue.MemoryBroker
	submissions *mocks.MockSubmissionStore
	artifacts   *mocks.MockArtifactStore
	baseURL     string
	closed      []string
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "info"},
		Broker: config.BrokerConfig{
			Environment:    "test",
			InstanceID:     "app",
			ReceiveTimeout: 20 * time.Millisecond,
		},
		Dispatch: config.DispatchConfig{
			DebounceWindow:     5 * time.Second,
			StaleTaskAge:       time.Hour,
			StaleCheckSchedule: "@every 1h",
		},
	}
}

// startTestApp builds the application on in-memory dependencies and serves
// it on a loopback port until the test ends.
func startTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	cfg := testConfig()

	ta := &testApp{
		cfg:         cfg,
		broker:      queue.NewMemoryBroker(16, cfg.Broker.ReceiveTimeout, logger),
		submissions: mocks.NewMockSubmissionStore(),
		artifacts:   mocks.NewMockArtifactStore(),
	}
	require.NoError(t, ta.submissions.Create(context.Background(), &domain.Submission{
		ID:            testSubmissionID,
		ExtractedText: "Photosynthesis converts light energy into chemical energy.",
	}))

	app, err := newApplication(cfg, logger, dependencies{
		broker:      ta.broker,
		submissions: ta.submissions,
		rubrics:     mocks.NewMockRubricStore(),
		artifacts:   ta.artifacts,
		closers: []closer{
			{name: "broker", close: func() error { ta.closed = append(ta.closed, "broker"); return nil }},
		},
	})
	require.NoError(t, err)
	ta.app = app

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ta.baseURL = "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("application did not shut down")
		}
		ta.app.cleanup()
		assert.Equal(t, []string{"broker"}, ta.closed)
		ta.broker.Close()
	})
	return ta
}

func (ta *testApp) post(t *testing.T, path string) (int, api.SubmitTaskResponse) {
	t.Helper()
	resp, err := http.Post(ta.baseURL+path, "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body api.SubmitTaskResponse
	if resp.StatusCode == http.StatusAccepted {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp.StatusCode, body
}

func (ta *testApp) receiveRequest(t *testing.T) task.Envelope {
	t.Helper()
	var d *queue.Delivery
	require.Eventually(t, func() bool {
		var err error
		d, err = ta.broker.Receive(context.Background(), ta.cfg.Broker.OutboundQueue())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, d.Ack(context.Background()))

	env, err := task.ParseEnvelope(d.Body)
	require.NoError(t, err)
	return env
}

func TestNewApplication_RequiresBroker(t *testing.T) {
	t.Parallel()

	_, err := newApplication(testConfig(), nil, dependencies{
		submissions: mocks.NewMockSubmissionStore(),
		rubrics:     mocks.NewMockRubricStore(),
		artifacts:   mocks.NewMockArtifactStore(),
	})
	assert.Error(t, err)
}

func TestNewApplication_RequiresStores(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.DiscardHandler)

	_, err := newApplication(testConfig(), logger, dependencies{
		broker: queue.NewMemoryBroker(1, time.Millisecond, logger),
	})
	assert.Error(t, err)
}

func TestApplication_TaskRoundTrip(t *testing.T) {
	ta := startTestApp(t)
	path := fmt.Sprintf("/api/submissions/%s/tasks/%s", testSubmissionID, task.TypeVivaQuestions)

	status, body := ta.post(t, path)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, string(task.SubmitPublished), body.Result)
	assert.Equal(t, domain.StatusInProgress, ta.submissions.Status(testSubmissionID, domain.FieldVivaStatus))

	status, body = ta.post(t, path)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, string(task.SubmitSuppressed), body.Result, "identical request inside the window is suppressed")

	req := ta.receiveRequest(t)
	assert.Equal(t, task.TypeVivaQuestions, req.Type)
	assert.Equal(t, testSubmissionID, req.UUID)
	assert.Equal(t, 0, ta.broker.Len(ta.cfg.Broker.OutboundQueue()), "only one request is published")

	resp, err := task.NewEnvelope(task.TypeVivaQuestions, testSubmissionID, map[string]any{
		"questions": []map[string]string{
			{"question_text": "What limits the rate of photosynthesis?", "question_category": "understanding"},
			{"question_text": "Why is chlorophyll green?", "question_category": "recall"},
		},
	})
	require.NoError(t, err)
	raw, err := resp.Marshal()
	require.NoError(t, err)
	require.NoError(t, ta.broker.Publish(context.Background(), ta.cfg.Broker.InboundQueue(), raw))

	require.Eventually(t, func() bool {
		return ta.submissions.Status(testSubmissionID, domain.FieldVivaStatus) == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return ta.broker.Acked(ta.cfg.Broker.InboundQueue()) == 1
	}, time.Second, 10*time.Millisecond, "response is acknowledged")

	httpResp, err := http.Get(ta.baseURL + "/api/submissions/" + testSubmissionID)
	require.NoError(t, err)
	defer func() { _ = httpResp.Body.Close() }()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)

	var sub api.SubmissionResponse
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&sub))
	assert.Equal(t, string(domain.StatusCompleted), sub.Statuses[string(domain.FieldVivaStatus)])
	assert.Equal(t, string(domain.StatusPending), sub.Statuses[string(domain.FieldSummaryStatus)])
	assert.Len(t, sub.VivaQuestions, 2)
}

// startWorker runs a worker processor over the application's broker.
func (ta *testApp) startWorker(t *testing.T, gen *mocks.MockGenerator) {
	t.Helper()
	queues := worker.Queues{
		Requests:  ta.cfg.Broker.OutboundQueue(),
		Responses: ta.cfg.Broker.InboundQueue(),
	}
	processor, err := worker.NewProcessor(ta.broker, queues, gen, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- processor.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("worker did not shut down")
		}
	})
}

func TestApplication_WorkerRoundTrip(t *testing.T) {
	ta := startTestApp(t)
	gen := mocks.NewMockGeneratorWithResponse(`{"questions":[
		{"question_text":"What limits the rate of photosynthesis?","question_category":"understanding"},
		{"question_text":"Where does the light reaction happen?","question_category":"recall"}
	]}`)
	ta.startWorker(t, gen)

	status, body := ta.post(t, fmt.Sprintf("/api/submissions/%s/tasks/%s", testSubmissionID, task.TypeVivaQuestions))
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, string(task.SubmitPublished), body.Result)

	require.Eventually(t, func() bool {
		return ta.submissions.Status(testSubmissionID, domain.FieldVivaStatus) == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, 1, gen.CallCount())
	assert.Contains(t, gen.GenerateCalls.Requests[0].Prompt, "Photosynthesis converts light energy")

	questions, err := ta.artifacts.ListVivaQuestions(context.Background(), testSubmissionID)
	require.NoError(t, err)
	assert.Len(t, questions, 2)

	assert.Eventually(t, func() bool {
		return ta.broker.Acked(ta.cfg.Broker.OutboundQueue()) == 1 &&
			ta.broker.Acked(ta.cfg.Broker.InboundQueue()) == 1
	}, time.Second, 10*time.Millisecond, "request and response are both acknowledged")
}

func TestApplication_ErrorResponseMarksEntity(t *testing.T) {
	ta := startTestApp(t)

	status, _ := ta.post(t, fmt.Sprintf("/api/submissions/%s/tasks/%s", testSubmissionID, task.TypeSummaryAndReport))
	require.Equal(t, http.StatusAccepted, status)
	ta.receiveRequest(t)

	env := task.Envelope{
		Type: task.TypeSummaryAndReport,
		UUID: testSubmissionID,
		Data: task.ErrorData(task.ErrorCodeGenerationFailed, "model unavailable"),
	}
	body, err := env.Marshal()
	require.NoError(t, err)
	require.NoError(t, ta.broker.Publish(context.Background(), ta.cfg.Broker.InboundQueue(), body))

	require.Eventually(t, func() bool {
		return ta.submissions.Status(testSubmissionID, domain.FieldSummaryStatus) == domain.StatusError
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApplication_RejectsBadRequests(t *testing.T) {
	ta := startTestApp(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown type", "/api/submissions/sub-1/tasks/translate", http.StatusBadRequest},
		{"rubric task on submission", "/api/submissions/sub-1/tasks/createRubric", http.StatusBadRequest},
		{"missing submission", "/api/submissions/nope/tasks/vivaQuestions", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := ta.post(t, tc.path)
			assert.Equal(t, tc.status, status)
		})
	}
	assert.Equal(t, 0, ta.broker.Len(ta.cfg.Broker.OutboundQueue()))
}

func TestApplication_Health(t *testing.T) {
	ta := startTestApp(t)

	resp, err := http.Get(ta.baseURL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApplication_Cleanup(t *testing.T) {
	t.Parallel()
	app := &application{
		logger: slog.New(slog.DiscardHandler),
	}
	var order []string
	app.closers = []closer{
		{name: "broker", close: func() error { order = append(order, "broker"); return errors.New("already closed") }},
		{name: "database", close: func() error { order = append(order, "database"); return nil }},
	}

	app.cleanup()
	app.cleanup()

	assert.Equal(t, []string{"broker", "database"}, order, "every closer runs once even after a failure")
}
