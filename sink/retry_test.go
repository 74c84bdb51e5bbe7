package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/datajobs/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return nil
	}, 3, 10*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, 5, time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return expectedErr
	}, 3, time.Millisecond, nil)
	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return the original error")
	assert.Equal(t, 3, attempts, "should attempt exactly maxAttempts times")
}

func TestRetryWithBackoff_NotRetryable(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return core.UserError(errors.New("bad row"))
	}, 5, time.Millisecond, Retryable)
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "user errors are not retried")
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := RetryWithBackoff(ctx, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}, 10, 10*time.Millisecond, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2, "should stop when context is canceled")
}

func TestRetryWithBackoff_InvalidMaxAttempts(t *testing.T) {
	err := RetryWithBackoff(context.Background(), func() error { return nil }, 0, time.Millisecond, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestRetryable(t *testing.T) {
	base := errors.New("x")
	assert.True(t, Retryable(base))
	assert.True(t, Retryable(core.PlatformError(base)))
	assert.False(t, Retryable(core.UserError(base)))
	assert.False(t, Retryable(core.ConfigError(base)))
	assert.False(t, Retryable(context.Canceled))
}

func TestWithRetry(t *testing.T) {
	attempts := 0
	flaky := Func(func(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (core.Metadata, error) {
		attempts++
		if attempts < 2 {
			return md, core.PlatformError(errors.New("connection reset"))
		}
		md.Set("attempts", attempts)
		return md, nil
	})

	s := WithRetry(flaky, 3, time.Millisecond)
	md, err := s.Ingest(context.Background(), []core.Payload{{"a": 1}}, core.Destination{Table: "t"}, core.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	v, ok := md.Get("attempts")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestWithRetry_SingleAttemptIsPassthrough(t *testing.T) {
	s := Func(func(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (core.Metadata, error) {
		return md, nil
	})
	_, isRetry := WithRetry(s, 1, time.Millisecond).(*retrySink)
	assert.False(t, isRetry)
}
