package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelscout/pkg/config"
	errs "reelscout/pkg/errors"
	"reelscout/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterStaysInBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestBackoffFromConfig(t *testing.T) {
	b := BackoffFromConfig(config.DefaultConfig().Retry)
	assert.Equal(t, 2*time.Second, b.BaseDelay)
	assert.Equal(t, 60*time.Second, b.MaxDelay)
	assert.Equal(t, 2.0, b.Multiplier)
}

func fastConfig(ctx context.Context, attempts int) *Config {
	return &Config{
		MaxAttempts: attempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Context:     ctx,
		Logger:      logger.NewNopLogger(),
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		if attempts < 3 {
			return errs.Provider(errs.ErrorTypeServerError, 502, "bad gateway", nil)
		}
		return nil
	}, fastConfig(context.Background(), 5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	providerErr := errs.Provider(errs.ErrorTypeTimeout, 0, "deadline", context.DeadlineExceeded)

	err := Do(func() error {
		attempts++
		return providerErr
	}, fastConfig(context.Background(), 3))

	require.Error(t, err)
	assert.Equal(t, 3, attempts)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.True(t, errs.IsProvider(err), "classification survives wrapping")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	authErr := errs.Provider(errs.ErrorTypeAuth, 401, "bad token", nil)

	err := Do(func() error {
		attempts++
		return authErr
	}, fastConfig(context.Background(), 5))

	assert.Same(t, authErr, err)
	assert.Equal(t, 1, attempts)
}

func TestUnclassifiedErrorsAreNotRetried(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		return errors.New("plain")
	}, fastConfig(context.Background(), 5))

	assert.EqualError(t, err, "plain")
	assert.Equal(t, 1, attempts)
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	cfg := fastConfig(ctx, 10)
	cfg.Backoff = &ConstantBackoff{Delay: time.Second}

	err := Do(func() error {
		attempts++
		cancel()
		return errs.Provider(errs.ErrorTypeNetwork, 0, "reset", nil)
	}, cfg)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.True(t, errs.IsProvider(err))
}

func TestOnRetryCallback(t *testing.T) {
	var seen []int
	cfg := fastConfig(context.Background(), 3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
	}

	_ = Do(func() error {
		return errs.Provider(errs.ErrorTypeRateLimit, 429, "slow down", nil)
	}, cfg)

	assert.Equal(t, []int{1, 2}, seen)
}

func TestErrorTypeBackoff(t *testing.T) {
	base := &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}
	etb := NewErrorTypeBackoff(base)

	assert.Same(t, base, etb.GetBackoffForError(errs.ErrorTypeNetwork))
	assert.Same(t, base, etb.GetBackoffForError(errs.ErrorTypeTimeout))

	rl, ok := etb.GetBackoffForError(errs.ErrorTypeRateLimit).(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, rl.BaseDelay)

	assert.Equal(t, 10*time.Second, etb.NextDelayFor(1, errs.Provider(errs.ErrorTypeRateLimit, 429, "", nil)))
	assert.Equal(t, 2*time.Second, etb.NextDelayFor(1, errs.Provider(errs.ErrorTypeServerError, 503, "", nil)))
	assert.Equal(t, time.Second, etb.NextDelay(1))
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errs.Provider(errs.ErrorTypeNetwork, 0, "reset", nil)
		}
		return "success", nil
	}, fastConfig(context.Background(), 3))

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 2, attempts)
}
