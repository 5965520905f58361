// Package retry implements the two-tier retry policy used for every
// flaky interaction with the Google Photos UI: a fast tier for checks
// that settle almost immediately (unrendered panels, click races) and a
// slow tier for navigation and download-triggered operations where the
// host may be slow or rate-limiting.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Failure classification. Transient kinds are absorbed by the policies
// below; everything else propagates immediately.
var (
	// ErrTransientLocal marks UI elements that have not rendered yet, or
	// races between an input event and the DOM update it causes.
	ErrTransientLocal = errors.New("transient local failure")
	// ErrTransientSystemic marks navigation timeouts, detached targets
	// and expired sessions. Recovery may reload or re-authenticate.
	ErrTransientSystemic = errors.New("transient systemic failure")
	// ErrValidation marks malformed or missing required input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrAuthentication marks a login flow that did not resolve to an
	// authenticated state. Fatal for the whole run.
	ErrAuthentication = errors.New("authentication failed")
	// ErrExhausted wraps a transient error once its policy gave up, so the
	// caller sees a fatal error rather than something retryable.
	ErrExhausted = errors.New("retries exhausted")
)

// Transient reports whether err may be absorbed by a retry tier.
func Transient(err error) bool {
	return errors.Is(err, ErrTransientLocal) || errors.Is(err, ErrTransientSystemic)
}

// Classify maps raw driver errors onto the retry taxonomy. Errors that
// already carry a classification pass through unchanged.
func Classify(err error) error {
	if err == nil || Transient(err) ||
		errors.Is(err, ErrValidation) || errors.Is(err, ErrAuthentication) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%v: %w", err, ErrTransientSystemic)
	}
	msg := err.Error()
	switch {
	// Raced the DOM: the node went away between query and use.
	case strings.Contains(msg, "Could not find node with given id"),
		strings.Contains(msg, "Cannot read properties of null"):
		return fmt.Errorf("%v: %w", err, ErrTransientLocal)
	case strings.Contains(msg, "net::ERR_ABORTED"),
		strings.Contains(msg, "context canceled"),
		strings.Contains(msg, "target closed"):
		return fmt.Errorf("%v: %w", err, ErrTransientSystemic)
	}
	return err
}

// Policy bounds one retry tier. A zero Attempts means the tier is bounded
// by Timeout alone.
type Policy struct {
	Attempts    int
	Timeout     time.Duration
	WaitInitial time.Duration
	WaitMax     time.Duration
	WaitJitter  time.Duration
	ExpBase     float64
}

// Fast returns the tier for checks expected to settle almost immediately.
func Fast() Policy {
	return Policy{
		Timeout:     2 * time.Second,
		WaitInitial: 10 * time.Millisecond,
		WaitMax:     500 * time.Millisecond,
		WaitJitter:  10 * time.Millisecond,
		ExpBase:     1.7,
	}
}

// Slow returns the tier for navigation and download-triggered operations.
func Slow() Policy {
	return Policy{
		Attempts:    100,
		Timeout:     450 * time.Second,
		WaitInitial: 100 * time.Millisecond,
		WaitMax:     50 * time.Second,
		WaitJitter:  time.Second,
		ExpBase:     2,
	}
}

func (p Policy) wait(attempt int) time.Duration {
	w := time.Duration(float64(p.WaitInitial) * math.Pow(p.ExpBase, float64(attempt-1)))
	if w > p.WaitMax || w < 0 {
		w = p.WaitMax
	}
	if p.WaitJitter > 0 {
		w += time.Duration(rand.Int63n(int64(p.WaitJitter)))
	}
	return w
}

// Do runs fn until it succeeds, returns a non-transient error, or the
// policy is exhausted. Exhaustion re-classifies the last transient error
// as fatal by wrapping it in ErrExhausted.
func (p Policy) Do(ctx context.Context, log zerolog.Logger, desc string, fn func(context.Context) error) error {
	start := time.Now()
	var err error
	for attempt := 1; ; attempt++ {
		err = Classify(fn(ctx))
		if err == nil {
			if attempt > 1 {
				log.Debug().Int("triesToSuccess", attempt).
					Int64("duration", time.Since(start).Milliseconds()).
					Msgf("done %s", desc)
			}
			return nil
		}
		if !Transient(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.Attempts > 0 && attempt >= p.Attempts {
			break
		}
		wait := p.wait(attempt)
		if p.Timeout > 0 && time.Since(start)+wait > p.Timeout {
			break
		}
		log.Debug().Int("attempt", attempt).
			Int64("duration", time.Since(start).Milliseconds()).
			Msgf("retrying %s: %v", desc, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s failed after %v: %v: %w", desc, time.Since(start).Round(time.Millisecond), err, ErrExhausted)
}
