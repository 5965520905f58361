package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastAbsorbsTransientFailures(t *testing.T) {
	calls := 0
	err := Fast().Do(context.Background(), zerolog.Nop(), "flaky check", func(context.Context) error {
		calls++
		if calls <= 2 {
			return fmt.Errorf("panel not rendered: %w", ErrTransientLocal)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestNonTransientPropagatesImmediately(t *testing.T) {
	boom := fmt.Errorf("missing album link: %w", ErrValidation)
	calls := 0
	err := Fast().Do(context.Background(), zerolog.Nop(), "check", func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1, calls, "validation errors must not be retried")
}

func TestExhaustionReclassifiesAsFatal(t *testing.T) {
	p := Policy{Attempts: 3, Timeout: time.Second, WaitInitial: time.Millisecond, WaitMax: time.Millisecond, ExpBase: 1}
	err := p.Do(context.Background(), zerolog.Nop(), "check", func(context.Context) error {
		return ErrTransientLocal
	})
	require.ErrorIs(t, err, ErrExhausted)
	assert.False(t, Transient(err), "exhausted errors must read as fatal")
}

func TestPolicyHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Fast().Do(ctx, zerolog.Nop(), "check", func(context.Context) error {
		return ErrTransientSystemic
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil))
	assert.ErrorIs(t, Classify(context.DeadlineExceeded), ErrTransientSystemic)
	assert.ErrorIs(t, Classify(errors.New("Could not find node with given id (-32000)")), ErrTransientLocal)
	assert.ErrorIs(t, Classify(errors.New("page load failed with net::ERR_ABORTED")), ErrTransientSystemic)

	classified := fmt.Errorf("albums element not loaded: %w", ErrTransientLocal)
	assert.Same(t, classified, Classify(classified))

	plain := errors.New("boom")
	assert.Same(t, plain, Classify(plain))
	assert.False(t, Transient(plain))
}

func TestDoWithRecoveryRunsSlowTierOnce(t *testing.T) {
	recovered := 0
	calls := 0
	err := DefaultEngine().DoWithRecovery(context.Background(), zerolog.Nop(), "advance",
		RecoverFunc(func(context.Context) error {
			recovered++
			return nil
		}),
		func(context.Context) error {
			calls++
			if recovered == 0 {
				return fmt.Errorf("no render: %w", ErrTransientLocal)
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)
	assert.Greater(t, calls, 1)
}

func TestDoWithRecoveryKeepsOriginalErrorWhenRecoveryFails(t *testing.T) {
	err := DefaultEngine().DoWithRecovery(context.Background(), zerolog.Nop(), "advance",
		RecoverFunc(func(context.Context) error {
			return errors.New("reload failed")
		}),
		func(context.Context) error {
			return fmt.Errorf("no render: %w", ErrTransientLocal)
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Contains(t, err.Error(), "reload failed")
}

func TestDoWithRecoverySkipsRecoveryOnSuccess(t *testing.T) {
	err := DefaultEngine().DoWithRecovery(context.Background(), zerolog.Nop(), "advance",
		RecoverFunc(func(context.Context) error {
			t.Fatal("recovery must not run when the fast tier succeeds")
			return nil
		}),
		func(context.Context) error { return nil })
	require.NoError(t, err)
}
