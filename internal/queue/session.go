package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/phrazzld/vivaflow/internal/config"
)

// ErrSessionClosed is returned by Client after Close.
var ErrSessionClosed = errors.New("broker session is closed")

// DialFunc opens a verified connection to the broker.
type DialFunc func(ctx context.Context, url string) (*redis.Client, error)

// Dial parses url, creates a client and verifies it with PING.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid broker url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Session is the process-wide broker connection. It dials lazily on first
// use and redials with exponential backoff after Invalidate drops a broken
// connection.
type Session struct {
	url         string
	maxAttempts uint64
	baseDelay   time.Duration
	dial        DialFunc
	logger      *slog.Logger

	mu     sync.Mutex
	client *redis.Client
	closed bool
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithDialer replaces the function used to open connections.
func WithDialer(dial DialFunc) SessionOption {
	return func(s *Session) {
		s.dial = dial
	}
}

// NewSession creates a Session. No connection is made until Client is called.
func NewSession(cfg config.BrokerConfig, logger *slog.Logger, opts ...SessionOption) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	baseDelay := cfg.ReconnectBaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	s := &Session{
		url:         cfg.URL,
		maxAttempts: cfg.ReconnectMaxAttempts,
		baseDelay:   baseDelay,
		dial:        Dial,
		logger:      logger.With("component", "broker_session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the live connection, dialing if there is none.
func (s *Session) Client(ctx context.Context) (*redis.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.client != nil {
		return s.client, nil
	}

	b := retry.NewExponential(s.baseDelay)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithMaxRetries(s.maxAttempts, b)

	attempt := 0
	var client *redis.Client
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		c, err := s.dial(ctx, s.url)
		if err != nil {
			s.logger.Warn("broker connection attempt failed",
				"attempt", attempt,
				"error", err)
			return retry.RetryableError(err)
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker after %d attempts: %w", attempt, err)
	}

	s.client = client
	s.logger.Info("broker connection established", "attempts", attempt)
	return client, nil
}

// Invalidate drops c if it is still the current connection, so the next
// Client call redials. Stale clients from an earlier generation are ignored.
func (s *Session) Invalidate(c *redis.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c == nil || s.client != c {
		return
	}
	_ = s.client.Close()
	s.client = nil
	s.logger.Warn("broker connection invalidated")
}

// observe invalidates c when err indicates the connection itself is broken.
func (s *Session) observe(c *redis.Client, err error) {
	if isConnectionError(err) {
		s.Invalidate(c)
	}
}

// Close releases the connection. Client fails afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func isConnectionError(err error) bool {
	if err == nil ||
		errors.Is(err, redis.Nil) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, redis.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
