package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"euphony/internal/retry"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("transient")
var errPermanent = errors.New("permanent")

func fastConfig(attempts int) retry.Config {
	return retry.Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		Retryable:    func(err error) bool { return errors.Is(err, errTransient) },
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := retry.Do(context.Background(), fastConfig(3), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastConfig(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, errPermanent
	})

	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastConfig(2), func(ctx context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := retry.Do(ctx, fastConfig(2), func(ctx context.Context) (int, error) {
		calls++
		return 0, nil
	})

	assert.Error(t, err)
	assert.Equal(t, 0, calls)
}
