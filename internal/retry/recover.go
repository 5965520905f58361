package retry

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Recoverer restores an interaction handle to a usable state between the
// fast and slow tiers: a page reload for stalled renders, or a
// re-authentication cycle for lost sessions.
type Recoverer interface {
	Recover(ctx context.Context) error
}

// RecoverFunc adapts a function to the Recoverer interface.
type RecoverFunc func(ctx context.Context) error

func (f RecoverFunc) Recover(ctx context.Context) error { return f(ctx) }

// Engine pairs the two retry tiers. Components embed one engine and use
// it for every flaky operation instead of re-deriving parameters per
// call site.
type Engine struct {
	Fast Policy
	Slow Policy
}

// DefaultEngine returns the production tiers.
func DefaultEngine() Engine {
	return Engine{Fast: Fast(), Slow: Slow()}
}

// DoWithRecovery is the two-step failure-recovery algorithm: run fn
// under the fast tier; on exhaustion, recover the handle and run fn once
// more under the slow tier before surfacing the failure. Errors raised
// by fn after recovery propagate as-is, never swallowed by the recovery
// step.
func (e Engine) DoWithRecovery(ctx context.Context, log zerolog.Logger, desc string, rec Recoverer, fn func(context.Context) error) error {
	err := e.Fast.Do(ctx, log, desc, fn)
	if err == nil || !errors.Is(err, ErrExhausted) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	log.Warn().Msgf("recovering before slow retry of %s: %v", desc, err)
	if rerr := rec.Recover(ctx); rerr != nil {
		return fmt.Errorf("recovery for %s failed: %v (original: %w)", desc, rerr, err)
	}
	return e.Slow.Do(ctx, log, desc, fn)
}
