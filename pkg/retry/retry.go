// Package retry runs calls against Google APIs with a per-attempt timeout and
// bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	gax "github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// ErrAuth marks failures caused by rejected service credentials. These are
// never retried.
var ErrAuth = errors.New("remote credentials rejected")

// ErrOutcomeUnknown marks a write whose last attempt ended without telling
// whether the remote side applied it, e.g. a timeout after the request left.
var ErrOutcomeUnknown = errors.New("remote write outcome unknown")

type authError struct {
	err error
}

func (e *authError) Error() string {
	return fmt.Sprintf("%s: %v", ErrAuth.Error(), e.err)
}

func (e *authError) Unwrap() []error {
	return []error{ErrAuth, e.err}
}

type unknownError struct {
	err error
}

func (e *unknownError) Error() string {
	return fmt.Sprintf("%s: %v", ErrOutcomeUnknown.Error(), e.err)
}

func (e *unknownError) Unwrap() []error {
	return []error{ErrOutcomeUnknown, e.err}
}

// Policy bounds a retried call.
type Policy struct {
	Attempts int
	Timeout  time.Duration
	Initial  time.Duration
	Max      time.Duration
}

// Hooks lets callers observe calls, e.g. to record metrics.
type Hooks struct {
	OnAttempt func(operation string, elapsed time.Duration, err error)
	OnRetry   func(operation string, attempt int, err error)
}

// Runner executes remote operations under a Policy.
type Runner struct {
	policy Policy
	hooks  Hooks
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewRunner builds a runner. Zero policy fields fall back to sane defaults.
func NewRunner(policy Policy, hooks Hooks, logger *zap.Logger) *Runner {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	if policy.Initial <= 0 {
		policy.Initial = 500 * time.Millisecond
	}
	if policy.Max <= 0 {
		policy.Max = 8 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{policy: policy, hooks: hooks, logger: logger, sleep: gax.Sleep}
}

// Do runs fn until it succeeds, fails permanently, or the attempts run out.
// Each attempt gets its own deadline derived from ctx. fn must be safe to
// repeat.
func (r *Runner) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	return r.run(ctx, operation, fn, IsRetryable)
}

// DoWrite runs a call that must not be applied twice. It is repeated only
// after failures proving the remote side rejected the request. When the last
// failure leaves the outcome open the error wraps ErrOutcomeUnknown.
func (r *Runner) DoWrite(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := r.run(ctx, operation, fn, IsRejected)
	if err == nil || errors.Is(err, ErrAuth) || IsRejected(err) || !mayHaveApplied(err) {
		return err
	}
	return &unknownError{err: err}
}

func (r *Runner) run(ctx context.Context, operation string, fn func(context.Context) error, retryable func(error) bool) error {
	bo := gax.Backoff{Initial: r.policy.Initial, Max: r.policy.Max, Multiplier: 2}

	var err error
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		err = r.attempt(ctx, operation, fn)
		if err == nil {
			return nil
		}
		if IsAuth(err) {
			return &authError{err: err}
		}
		if !retryable(err) || attempt == r.policy.Attempts || ctx.Err() != nil {
			break
		}

		pause := bo.Pause()
		r.logger.Warn("remote call failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("pause", pause),
			zap.Error(err),
		)
		if r.hooks.OnRetry != nil {
			r.hooks.OnRetry(operation, attempt, err)
		}
		if sleepErr := r.sleep(ctx, pause); sleepErr != nil {
			return fmt.Errorf("%s: %w", operation, errors.Join(err, sleepErr))
		}
	}
	return fmt.Errorf("%s: %w", operation, err)
}

func (r *Runner) attempt(ctx context.Context, operation string, fn func(context.Context) error) error {
	callCtx := ctx
	if r.policy.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(callCtx)
	if r.hooks.OnAttempt != nil {
		r.hooks.OnAttempt(operation, time.Since(start), err)
	}
	return err
}

// IsRetryable reports transient failures: 5xx, 429, rate-limit 403 and
// network timeouts.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code >= http.StatusInternalServerError:
			return true
		case apiErr.Code == http.StatusTooManyRequests:
			return true
		case apiErr.Code == http.StatusForbidden:
			return isRateLimit(apiErr)
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// IsRejected reports failures returned before the remote side applied
// anything: 429, 503 and rate-limit 403.
func IsRejected(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	case http.StatusForbidden:
		return isRateLimit(apiErr)
	}
	return false
}

// mayHaveApplied is false only for answers that prove the request was
// refused: any 4xx. Transport failures, timeouts and other 5xx are open.
func mayHaveApplied(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= http.StatusInternalServerError
	}
	return true
}

// IsAuth reports whether the remote side rejected the service credentials.
func IsAuth(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuth) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return true
		case http.StatusForbidden:
			return !isRateLimit(apiErr)
		}
		return false
	}
	var tokenErr *oauth2.RetrieveError
	return errors.As(err, &tokenErr)
}

func isRateLimit(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "rate limit")
}
