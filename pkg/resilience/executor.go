package resilience

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Outcome says what a failed sink call means for the executor.
type Outcome int

const (
	// Retry is a transient failure: try again and count it against the
	// target's breaker.
	Retry Outcome = iota

	// Fail gives up at once but still counts against the breaker.
	Fail

	// Ignore gives up at once without touching the breaker. Caller side
	// problems (cancellation, rejected requests) use it.
	Ignore
)

// Classifier maps a failed call to an Outcome.
type Classifier func(err error) Outcome

// Executor guards the calls of one sink. Each target (a NATS subject, a
// webhook host) gets its own breaker, named "<sink>:<target>", so one
// failing endpoint does not block the others.
type Executor struct {
	sink   string
	policy Policy
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

// NewExecutor creates the executor for sink. A nil logger uses
// slog.Default.
func NewExecutor(sink string, policy Policy, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		sink:     sink,
		policy:   policy.withDefaults(),
		logger:   logger.With("component", "resilience", "sink", sink),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Do runs call against target, retrying while classify says Retry. A nil
// classify uses DefaultClassifier. When the target's breaker is open the
// call is not made and the error satisfies IsCircuitOpen.
func (e *Executor) Do(ctx context.Context, target string, call func(context.Context) error, classify Classifier) error {
	if call == nil {
		return errors.New("resilience: nil call")
	}
	if classify == nil {
		classify = DefaultClassifier
	}
	if !e.policy.Breaker {
		return e.attempt(ctx, target, call, classify)
	}

	_, err := e.breaker(target, classify).Execute(func() (struct{}, error) {
		return struct{}{}, e.attempt(ctx, target, call, classify)
	})
	return err
}

// State returns the breaker state of target. Targets that were never
// called report closed.
func (e *Executor) State(target string) gobreaker.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.breakers[target]; ok {
		return b.State()
	}
	return gobreaker.StateClosed
}

func (e *Executor) attempt(ctx context.Context, target string, call func(context.Context) error, classify Classifier) error {
	var err error
	for n := 1; n <= e.policy.Attempts; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		if err = call(ctx); err == nil {
			return nil
		}
		if classify(err) != Retry || n == e.policy.Attempts {
			return err
		}

		wait := e.policy.wait(n)
		e.logger.WarnContext(ctx, "sink call failed, retrying",
			"target", target,
			"attempt", n,
			"attempts", e.policy.Attempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		if wait <= 0 {
			continue
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return err
}

func (e *Executor) breaker(target string, classify Classifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if b, ok := e.breakers[target]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        e.sink + ":" + target,
		MaxRequests: e.policy.HalfOpenCalls,
		Timeout:     e.policy.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= e.policy.TripAfter
		},
		IsSuccessful: func(err error) bool {
			return err == nil || classify(err) == Ignore
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("sink breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[target] = b
	return b
}

// IsCircuitOpen reports whether err came from an open or saturated
// half-open breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err so DefaultClassifier fails without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// DefaultClassifier ignores cancellation, fails permanent errors and
// retries everything else.
func DefaultClassifier(err error) Outcome {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Ignore
	case IsPermanent(err):
		return Fail
	}
	return Retry
}

// HTTPStatus classifies a non-2xx response from an HTTP sink: throttling
// and server errors are retried, other statuses are the caller's problem.
func HTTPStatus(code int) Outcome {
	if code == http.StatusTooManyRequests || code >= 500 {
		return Retry
	}
	return Ignore
}
