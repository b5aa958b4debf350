package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, GetStatusCode(ErrNotFound))
	assert.Equal(t, http.StatusConflict, GetStatusCode(fmt.Errorf("wrapped: %w", ErrConflict)))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(stderrors.New("plain")))

	cause := stderrors.New("disk full")
	err := Wrap(http.StatusServiceUnavailable, "cache unavailable", cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsAppError(err))
	assert.Contains(t, err.Error(), "disk full")

	detailed := WithDetails(ErrBadRequest, map[string]string{"field": "name"})
	assert.Equal(t, http.StatusBadRequest, detailed.Code)
	assert.NotNil(t, detailed.Details)
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "platform", MaxFailures: 2, ResetTimeout: time.Minute})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	boom := stderrors.New("boom")
	fail := func(ctx context.Context) error { return boom }
	ok := func(ctx context.Context) error { return nil }

	assert.ErrorIs(t, cb.Execute(context.Background(), fail, nil), boom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(context.Background(), fail, nil), boom)
	assert.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(context.Background(), ok, nil), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(context.Background(), ok, nil))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Second})
	now := time.Now()
	cb.now = func() time.Time { return now }

	boom := stderrors.New("boom")
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return boom }, nil)
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Second)
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return boom }, nil)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_IgnoresUncountedErrors(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1})
	clientErr := stderrors.New("bad request")

	err := cb.Execute(context.Background(), func(ctx context.Context) error { return clientErr },
		func(err error) bool { return false })
	assert.ErrorIs(t, err, clientErr)
	assert.Equal(t, StateClosed, cb.State())
}

func TestRetry(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}
	transient := stderrors.New("transient")

	calls := 0
	err := Retry(context.Background(), policy, nil, "list", func(error) bool { return true }, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry(context.Background(), policy, nil, "list", func(error) bool { return false }, func(ctx context.Context) error {
		calls++
		return transient
	})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_GetDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, BackoffFactor: 2}
	assert.Equal(t, 100*time.Millisecond, policy.GetDelay(1))
	assert.Equal(t, 200*time.Millisecond, policy.GetDelay(2))
	assert.Equal(t, 300*time.Millisecond, policy.GetDelay(3))
}
