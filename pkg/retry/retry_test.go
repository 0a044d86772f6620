package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

func newTestRunner(attempts int, hooks Hooks) *Runner {
	r := NewRunner(Policy{Attempts: attempts, Timeout: time.Second, Initial: time.Millisecond, Max: time.Millisecond}, hooks, nil)
	r.sleep = func(context.Context, time.Duration) error { return nil }
	return r
}

func TestDoRetriesTransientErrors(t *testing.T) {
	var retries []int
	r := newTestRunner(3, Hooks{OnRetry: func(_ string, attempt int, _ error) { retries = append(retries, attempt) }})

	calls := 0
	err := r.Do(context.Background(), "sheets.append", func(ctx context.Context) error {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		if calls < 3 {
			return &googleapi.Error{Code: http.StatusServiceUnavailable}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestDoStopsAfterAttempts(t *testing.T) {
	r := newTestRunner(2, Hooks{})
	calls := 0
	err := r.Do(context.Background(), "drive.upload", func(context.Context) error {
		calls++
		return &googleapi.Error{Code: http.StatusTooManyRequests}
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "drive.upload")
	assert.False(t, errors.Is(err, ErrAuth))
}

func TestDoDoesNotRetryAuthFailures(t *testing.T) {
	r := newTestRunner(5, Hooks{})
	calls := 0
	err := r.Do(context.Background(), "drive.upload", func(context.Context) error {
		calls++
		return &googleapi.Error{Code: http.StatusForbidden, Message: "The caller does not have permission"}
	})

	require.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 1, calls)
	var apiErr *googleapi.Error
	assert.True(t, errors.As(err, &apiErr))
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	r := newTestRunner(5, Hooks{})
	calls := 0
	err := r.Do(context.Background(), "sheets.get", func(context.Context) error {
		calls++
		return &googleapi.Error{Code: http.StatusNotFound}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoReportsAttempts(t *testing.T) {
	var seen []string
	r := newTestRunner(1, Hooks{OnAttempt: func(op string, _ time.Duration, _ error) { seen = append(seen, op) }})
	require.NoError(t, r.Do(context.Background(), "sheets.get", func(context.Context) error { return nil }))
	assert.Equal(t, []string{"sheets.get"}, seen)
}

func TestClassifiers(t *testing.T) {
	rateLimited := &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}
	assert.True(t, IsRetryable(rateLimited))
	assert.False(t, IsAuth(rateLimited))

	assert.True(t, IsAuth(&googleapi.Error{Code: http.StatusUnauthorized}))
	assert.True(t, IsAuth(&oauth2.RetrieveError{}))
	assert.True(t, IsRetryable(&googleapi.Error{Code: http.StatusBadGateway}))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsAuth(nil))
}

func TestDoWriteDoesNotRepeatTimedOutCalls(t *testing.T) {
	r := NewRunner(Policy{Attempts: 3, Timeout: 10 * time.Millisecond, Initial: time.Millisecond, Max: time.Millisecond}, Hooks{}, nil)
	r.sleep = func(context.Context, time.Duration) error { return nil }

	calls := 0
	err := r.DoWrite(context.Background(), "sheets.append", func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})

	require.ErrorIs(t, err, ErrOutcomeUnknown)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestDoWriteRetriesRejectedCalls(t *testing.T) {
	r := newTestRunner(3, Hooks{})
	calls := 0
	err := r.DoWrite(context.Background(), "sheets.append", func(context.Context) error {
		calls++
		if calls == 1 {
			return &googleapi.Error{Code: http.StatusTooManyRequests}
		}
		if calls == 2 {
			return &googleapi.Error{Code: http.StatusServiceUnavailable}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoWriteClassifiesFinalFailures(t *testing.T) {
	r := newTestRunner(2, Hooks{})

	err := r.DoWrite(context.Background(), "drive.upload", func(context.Context) error {
		return &googleapi.Error{Code: http.StatusServiceUnavailable}
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrOutcomeUnknown))

	err = r.DoWrite(context.Background(), "drive.upload", func(context.Context) error {
		return &googleapi.Error{Code: http.StatusBadRequest}
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrOutcomeUnknown))

	calls := 0
	err = r.DoWrite(context.Background(), "drive.upload", func(context.Context) error {
		calls++
		return &googleapi.Error{Code: http.StatusBadGateway}
	})
	require.ErrorIs(t, err, ErrOutcomeUnknown)
	assert.Equal(t, 1, calls)

	err = r.DoWrite(context.Background(), "drive.upload", func(context.Context) error {
		return &googleapi.Error{Code: http.StatusUnauthorized}
	})
	require.ErrorIs(t, err, ErrAuth)
	assert.False(t, errors.Is(err, ErrOutcomeUnknown))
}
