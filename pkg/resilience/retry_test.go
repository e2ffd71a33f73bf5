package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/blockindex/pkg/logger"
)

var errFlaky = errors.New("flaky")

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), logger.Discard(), "write", fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), logger.Discard(), "write", fastPolicy(2), func() error {
		calls++
		return errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Contains(t, err.Error(), "2 attempts failed")
	assert.Equal(t, 2, calls)
}

func TestDo_SingleAttemptReturnsErrorUnwrapped(t *testing.T) {
	err := Do(context.Background(), logger.Discard(), "write", Policy{Attempts: 1}, func() error {
		return errFlaky
	})

	assert.Same(t, errFlaky, err)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), logger.Discard(), "write", Policy{}, func() error {
		calls++
		return errFlaky
	})

	assert.Equal(t, 1, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), logger.Discard(), "write", fastPolicy(5), func() error {
		calls++
		return Permanent(errFlaky)
	})

	assert.Same(t, errFlaky, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 3, InitialDelay: time.Hour, MaxDelay: time.Hour}
	err := Do(ctx, logger.Discard(), "write", p, func() error {
		cancel()
		return errFlaky
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errFlaky)
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	p := Policy{InitialDelay: 10 * time.Millisecond, MaxDelay: 35 * time.Millisecond, Multiplier: 2}.withDefaults()

	assert.Equal(t, 10*time.Millisecond, p.backoff(1))
	assert.Equal(t, 20*time.Millisecond, p.backoff(2))
	assert.Equal(t, 35*time.Millisecond, p.backoff(3))
}
