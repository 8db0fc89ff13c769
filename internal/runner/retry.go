package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// Policy bounds how an external invocation is attempted.
type Policy struct {
	// Timeout caps a single attempt. Zero means no per-attempt deadline.
	Timeout time.Duration
	// Retries is the number of additional attempts after the first failure.
	Retries int
	// Backoff is the delay before the first retry; it doubles each time.
	Backoff time.Duration
}

// Retryable reports whether err is worth another attempt. Only process
// failures qualify: a missing binary or a cancelled parent context does not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) {
		return false
	}
	var exitErr *ExitError
	return errors.As(err, &exitErr) || errors.Is(err, context.DeadlineExceeded)
}

// Do runs fn under the policy. fn receives a context carrying the
// per-attempt timeout.
func Do(ctx context.Context, p Policy, log zerolog.Logger, name string, fn func(ctx context.Context) error) error {
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		err := func() error {
			attemptCtx := ctx
			if p.Timeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
				defer cancel()
			}
			return fn(attemptCtx)
		}()
		if err == nil {
			return nil
		}

		lastErr = err
		if !Retryable(err) || attempt == p.Retries {
			break
		}

		log.Warn().
			Err(err).
			Str("cmd", name).
			Int("attempt", attempt+1).
			Int("max_attempts", p.Retries+1).
			Dur("backoff", backoff).
			Msg("external call failed, will retry")

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if p.Retries > 0 && Retryable(lastErr) {
		return fmt.Errorf("%s failed after %d attempts: %w", name, p.Retries+1, lastErr)
	}
	return lastErr
}
