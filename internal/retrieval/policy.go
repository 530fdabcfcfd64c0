package retrieval

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"slices"
	"time"
)

// Policy bounds the retry state machine of a single fetch.
type Policy struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int
	// BaseDelay is multiplied by the attempt index to get the wait before the
	// next attempt.
	BaseDelay time.Duration
	// Jitter adds a uniform random duration in [0, Jitter) to every wait.
	Jitter time.Duration
	// RetryStatuses are the response codes that signal throttling or blocking.
	RetryStatuses []int
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		BaseDelay:     2 * time.Second,
		Jitter:        time.Second,
		RetryStatuses: []int{http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable},
	}
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetry
	outcomeTerminal
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeRetry:
		return "retry"
	default:
		return "terminal"
	}
}

// classify maps the result of one attempt to the next state. parent is the
// caller's context: its cancellation is terminal, while a per-request timeout
// is retryable.
func (p Policy) classify(parent context.Context, status int, err error) outcome {
	if err != nil {
		if parent.Err() != nil {
			return outcomeTerminal
		}
		if isTimeout(err) {
			return outcomeRetry
		}
		return outcomeTerminal
	}

	switch {
	case status >= 200 && status < 300:
		return outcomeSuccess
	case slices.Contains(p.RetryStatuses, status):
		return outcomeRetry
	default:
		return outcomeTerminal
	}
}

// Delay is the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay * time.Duration(attempt)
	if p.Jitter > 0 {
		d += rand.N(p.Jitter)
	}
	return d
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
