package toolkit

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/mnemo/internal/apperr"
)

// Policy governs retry/timeout behavior for a single tool call (§4.11).
type Policy struct {
	TimeoutMS  int
	MaxRetries int
}

// defaultPolicy is the registry-wide fallback when neither the call
// context nor an override supplies a value.
var defaultPolicy = Policy{TimeoutMS: 5000, MaxRetries: 2}

// PolicyOverride carries optional policy fields. A nil field means "not
// specified, fall through to the next layer"; a non-nil field of 0 is a
// deliberate explicit value (e.g. timeout_ms=0 to fail every attempt
// before the handler runs, per §8's boundary behavior).
type PolicyOverride struct {
	TimeoutMS  *int
	MaxRetries *int
}

// apply layers o over base, taking base's fields only where o leaves them
// unset — the "default ⊕ ctx.policy ⊕ overrides" composition applied one
// layer at a time.
func (base Policy) apply(o PolicyOverride) Policy {
	out := base
	if o.TimeoutMS != nil {
		out.TimeoutMS = *o.TimeoutMS
	}
	if o.MaxRetries != nil {
		out.MaxRetries = *o.MaxRetries
	}
	return out
}

// OnRetry is called between attempts for logging.
type OnRetry func(attempt int, err error)

// Handler is a tool's business logic: the raw JSON input (already schema
// validated) in, a result value out. Each tool decodes rawInput into its
// own typed request struct.
type Handler func(ctx context.Context, rawInput json.RawMessage) (any, error)

// runWithPolicy executes handler up to policy.MaxRetries+1 times, each
// attempt bounded by policy.TimeoutMS. A zero or negative timeout fails
// immediately with Timeout, without invoking handler. Non-retryable
// failures return immediately. Built on errgroup's single-goroutine
// cancellation-propagation idiom (the same shape as the teacher's
// supervised process-lifetime goroutines in internal/entry.go, narrowed
// here to one attempt).
func runWithPolicy(ctx context.Context, policy Policy, input json.RawMessage, handler Handler, onRetry OnRetry) (any, error) {
	if policy.TimeoutMS <= 0 {
		return nil, apperr.New(apperr.Timeout, "tool call timeout_ms must be positive")
	}

	var lastErr error
	attempts := policy.MaxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(policy.TimeoutMS)*time.Millisecond)

		g, gCtx := errgroup.WithContext(attemptCtx)
		var result any
		g.Go(func() error {
			r, err := handler(gCtx, input)
			result = r
			return err
		})
		err := g.Wait()
		cancel()

		if err == nil {
			return result, nil
		}
		if attemptCtx.Err() == context.DeadlineExceeded {
			err = apperr.Wrap(apperr.Timeout, "tool call timed out", err)
		}
		lastErr = err

		if !apperr.Retryable(err) || attempt == attempts {
			return nil, lastErr
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return nil, lastErr
}
