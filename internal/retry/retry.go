package retry

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var ErrTooManyAttempts = errors.New("too many retry attempts")

// Callable returns an error created with Error when the attempt may be
// retried, any other error stops the retries immediately
type Callable func(attempt int) error

type retryError struct {
	error
	attempt int
}

func (e *retryError) Cause() error {
	return e.error
}

func Error(err error, attempt int) error {
	if err == nil {
		return nil
	}
	return &retryError{error: err, attempt: attempt}
}

type Attempts interface {
	Next() (time.Duration, bool)
	Current() int
}

func Start(ctx context.Context, a Attempts, cb Callable) error {
	for {
		err := cb(a.Current())
		if err == nil {
			return nil
		}

		re, ok := err.(*retryError)
		if !ok {
			return errors.Wrapf(err, "attempt %d failed", a.Current())
		}

		next, stop := a.Next()
		if stop {
			return errors.Wrapf(ErrTooManyAttempts, "after %d attempts: %v", re.attempt, re.error)
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), re.error.Error())
		case <-time.After(next):
		}
	}
}

// Incremental waits one more step between every following attempt
func Incremental(ctx context.Context, step time.Duration, maxAttempts int, cb Callable) error {
	return Start(ctx, IncrementalAttempts(step, maxAttempts), cb)
}

type incrementalAttempts struct {
	mu   sync.Mutex
	prev time.Duration
	step time.Duration
	max  int
	curr int
}

func (a *incrementalAttempts) Next() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.curr++
	if a.curr > a.max {
		return 0, true
	}

	next := a.prev + a.step
	a.prev = next

	return next, false
}

func (a *incrementalAttempts) Current() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.curr
}

func IncrementalAttempts(step time.Duration, max int) Attempts {
	if max < 1 {
		max = 1
	}

	return &incrementalAttempts{
		step: step,
		max:  max,
		curr: 1,
	}
}
