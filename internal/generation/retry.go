package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds CallWithRetry.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// NewRetryPolicy builds a policy from the configured values, falling back
// to 3 retries and a 2s base delay for out-of-range settings.
func NewRetryPolicy(maxRetries, retryDelaySeconds int) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 3
	}
	if retryDelaySeconds < 1 {
		retryDelaySeconds = 2
	}
	return RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Duration(retryDelaySeconds) * time.Second,
	}
}

// backoff is exponential from BaseDelay with 25% jitter, stopping after
// MaxRetries retries.
func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(25, b)
	return retry.WithMaxRetries(uint64(max(p.MaxRetries, 0)), b)
}

// CallWithRetry invokes call until it succeeds, returns a permanent error
// (see IsPermanent), or the policy's retries are used up. Waiting between
// attempts stops early when ctx is done.
func CallWithRetry(
	ctx context.Context,
	logger *slog.Logger,
	policy RetryPolicy,
	call func(ctx context.Context) ([]byte, error),
) ([]byte, error) {
	attempt := 0
	out, err := retry.DoValue(ctx, policy.backoff(), func(ctx context.Context) ([]byte, error) {
		attempt++
		logger.DebugContext(ctx, "calling language model",
			"attempt", attempt,
			"max_attempts", policy.MaxRetries+1)

		out, err := call(ctx)
		if err == nil {
			return out, nil
		}
		logger.WarnContext(ctx, "language model call failed",
			"attempt", attempt,
			"error", err)

		if IsPermanent(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, retry.RetryableError(err)
	})
	switch {
	case err == nil:
		return out, nil
	case IsPermanent(err):
		return nil, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %v", ErrTransientFailure, err)
	default:
		return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
			ErrTransientFailure, policy.MaxRetries, err)
	}
}
