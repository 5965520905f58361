// Package navigator drives forward traversal through an album one item
// at a time. Each step triggers the host's next-item control and waits
// for confirmation that new item content rendered, with recovery
// transitions (reload, then one slow retry) for stalled renders.
package navigator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/blakeNaccarato/google-photos-takeout-model/internal/locator"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/retry"
)

// State is the traversal state, tracked for logging and tests.
type State int

const (
	Idle State = iota
	Navigating
	AwaitingRender
	Settled
	Recovering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Navigating:
		return "navigating"
	case AwaitingRender:
		return "awaitingRender"
	case Settled:
		return "settled"
	case Recovering:
		return "recovering"
	}
	return "unknown"
}

// Navigator owns the transient cursor for one traversal. It keeps no
// cross-run state; resume position comes from the persisted record.
type Navigator struct {
	surface locator.Surface
	log     zerolog.Logger
	state   State

	// Engine supplies the retry tiers for every flaky step.
	Engine retry.Engine
	// RenderTimeout bounds one wait for new item content. PollTick is the
	// interval at which the resolved URL is re-read while waiting.
	RenderTimeout time.Duration
	PollTick      time.Duration
	// NavTimeout bounds one direct navigation attempt.
	NavTimeout time.Duration
}

// New returns a navigator over the given surface.
func New(surface locator.Surface, log zerolog.Logger) *Navigator {
	return &Navigator{
		surface:       surface,
		log:           log,
		Engine:        retry.DefaultEngine(),
		RenderTimeout: 10 * time.Second,
		PollTick:      100 * time.Millisecond,
		NavTimeout:    20 * time.Second,
	}
}

// State returns the current traversal state.
func (n *Navigator) State() State { return n.state }

func (n *Navigator) setState(s State) {
	if n.state != s {
		n.log.Trace().Msgf("navigation state %s -> %s", n.state, s)
		n.state = s
	}
}

// reloader is the standard recovery for stalled renders.
func (n *Navigator) reloader() retry.Recoverer {
	return retry.RecoverFunc(func(ctx context.Context) error {
		n.setState(Recovering)
		n.log.Debug().Msg("reloading page to recover navigation")
		return n.surface.Reload(ctx)
	})
}

// GotoAlbum navigates directly to the album entry URL under the slow
// policy; the host may be slow or rate-limiting on cold loads.
func (n *Navigator) GotoAlbum(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("empty album url: %w", retry.ErrValidation)
	}
	n.setState(Navigating)
	err := n.Engine.Slow.Do(ctx, n.log, "navigate to album", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, n.NavTimeout)
		defer cancel()
		return n.surface.Navigate(ctx, url)
	})
	if err != nil {
		n.setState(Idle)
		return err
	}
	n.setState(Settled)
	return nil
}

// SkipToURL fast-forwards resumption to a known item URL so a resumed
// run does not replay every prior advance.
func (n *Navigator) SkipToURL(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("empty item url: %w", retry.ErrValidation)
	}
	n.setState(Navigating)
	err := n.Engine.Slow.Do(ctx, n.log, "skip to item", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, n.NavTimeout)
		defer cancel()
		return n.surface.Navigate(ctx, url)
	})
	if err != nil {
		n.setState(Idle)
		return err
	}
	n.setState(Settled)
	return nil
}

// GotoFirst clicks the first eligible item link in the album grid, then
// makes sure the info panel is open before returning.
func (n *Navigator) GotoFirst(ctx context.Context) error {
	prev, err := n.surface.Location(ctx)
	if err != nil {
		return err
	}
	n.setState(Navigating)
	err = n.Engine.DoWithRecovery(ctx, n.log, "open first item", n.reloader(), func(ctx context.Context) error {
		if err := n.surface.ClickFirstPhoto(ctx); err != nil {
			return err
		}
		n.setState(AwaitingRender)
		return n.awaitLocationChange(ctx, prev)
	})
	if err != nil {
		n.setState(Idle)
		return err
	}
	if err := n.RevealInfo(ctx); err != nil {
		return err
	}
	n.setState(Settled)
	return nil
}

// Advance presses the next-item control and blocks until the resolved
// URL differs from the one observed immediately before the press. A
// stalled render escalates through reload and one slow retry.
func (n *Navigator) Advance(ctx context.Context) error {
	prev, err := n.surface.Location(ctx)
	if err != nil {
		return err
	}
	n.setState(Navigating)
	err = n.Engine.DoWithRecovery(ctx, n.log, "advance to next item", n.reloader(), func(ctx context.Context) error {
		// A prior press may have landed late; do not press again or we
		// would skip an item.
		cur, err := n.surface.Location(ctx)
		if err != nil {
			return err
		}
		if cur != prev {
			return nil
		}
		if err := n.surface.PressNext(ctx); err != nil {
			return err
		}
		n.setState(AwaitingRender)
		return n.awaitLocationChange(ctx, prev)
	})
	if err != nil {
		n.setState(Idle)
		return err
	}
	n.setState(Settled)
	return nil
}

// awaitLocationChange polls the resolved URL until it differs from prev.
func (n *Navigator) awaitLocationChange(ctx context.Context, prev string) error {
	deadline := time.Now().Add(n.RenderTimeout)
	for {
		cur, err := n.surface.Location(ctx)
		if err != nil {
			return err
		}
		if cur != prev {
			n.log.Trace().Msgf("navigation settled at %s", cur)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("no new item content after %v: %w", n.RenderTimeout, retry.ErrTransientSystemic)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.PollTick):
		}
	}
}

// RevealInfo opens the info panel if it is not already visible and
// confirms it rendered. Resumed traversals call it after skipping
// directly to an item URL.
func (n *Navigator) RevealInfo(ctx context.Context) error {
	visible, err := n.surface.InfoVisible(ctx)
	if err != nil {
		return err
	}
	if !visible {
		if err := n.surface.PressInfoShortcut(ctx); err != nil {
			return err
		}
	}
	return n.Engine.Fast.Do(ctx, n.log, "confirm info panel", func(ctx context.Context) error {
		visible, err := n.surface.InfoVisible(ctx)
		if err != nil {
			return err
		}
		if !visible {
			return fmt.Errorf("info panel not rendered: %w", retry.ErrTransientLocal)
		}
		return nil
	})
}
