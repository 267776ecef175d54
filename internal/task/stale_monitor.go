package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/phrazzld/vivaflow/internal/store"
)

// StaleFinder lists entity status fields stuck in INPROGRESS.
type StaleFinder interface {
	FindStale(ctx context.Context, cutoff time.Time) ([]store.StaleEntity, error)
}

// ErrMonitorRunning is returned by Start when the monitor is already started.
var ErrMonitorRunning = errors.New("stale monitor already running")

// StaleMonitor periodically reports entities left INPROGRESS longer than
// maxAge. Nothing re-queues a stuck task; the report exists for operators.
type StaleMonitor struct {
	finder   StaleFinder
	schedule string
	maxAge   time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewStaleMonitor creates a monitor that runs on schedule, a cron
// expression such as "@every 5m" or "*/10 * * * *".
func NewStaleMonitor(finder StaleFinder, schedule string, maxAge time.Duration, logger *slog.Logger) (*StaleMonitor, error) {
	if finder == nil {
		return nil, fmt.Errorf("stale finder cannot be nil")
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("max age must be positive, got %s", maxAge)
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid stale check schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StaleMonitor{
		finder:   finder,
		schedule: schedule,
		maxAge:   maxAge,
		now:      time.Now,
		logger:   logger.With("component", "stale_monitor"),
	}, nil
}

// Start schedules the check. ctx bounds every individual check.
func (m *StaleMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return ErrMonitorRunning
	}

	c := cron.New()
	if _, err := c.AddFunc(m.schedule, func() {
		if _, err := m.Check(ctx); err != nil {
			m.logger.Error("stale status check failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule stale status check: %w", err)
	}
	c.Start()
	m.cron = c

	m.logger.Info("stale monitor started",
		"schedule", m.schedule,
		"max_age", m.maxAge.String())
	return nil
}

// Stop halts the schedule and waits for a running check to finish.
func (m *StaleMonitor) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	m.logger.Info("stale monitor stopped")
}

// Check runs one scan and logs every stale entity it finds.
func (m *StaleMonitor) Check(ctx context.Context) ([]store.StaleEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cutoff := m.now().Add(-m.maxAge)

	stale, err := m.finder.FindStale(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale entities: %w", err)
	}

	for _, s := range stale {
		m.logger.Warn("entity stuck in progress",
			"entity_id", s.ID,
			"field", string(s.Field),
			"cutoff", cutoff.Format(time.RFC3339))
	}
	if len(stale) > 0 {
		m.logger.Warn("stale status check found stuck entities", "count", len(stale))
	} else {
		m.logger.Debug("stale status check found no stuck entities")
	}
	return stale, nil
}
