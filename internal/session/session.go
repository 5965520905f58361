// Package session establishes authenticated browsing contexts. It owns
// the Chrome process, restores persisted session state before first
// navigation, drives the login flow when the host asks for it, and hands
// out ready interaction handles.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog"

	"github.com/blakeNaccarato/google-photos-takeout-model/internal/browser"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/retry"
)

// BaseURL is the authenticated home of the photo host.
const BaseURL = "https://photos.google.com"

const loginTick = 2 * time.Second

// Config carries everything the provider needs. Email and Password are
// opaque secrets and are never logged.
type Config struct {
	Email        string
	Password     string
	Headless     bool
	ProfileDir   string
	StateFile    string
	ExecPath     string
	LoginTimeout time.Duration
}

// Provider launches one Chrome process and produces interaction handles
// bound to its browsing context. Tabs share the profile's cookie store,
// so one login pre-phase authenticates every handle.
type Provider struct {
	cfg           Config
	log           zerolog.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	nextHandle    int

	// loginMu serializes login flows: when several workers lose the
	// session at once only one drives re-authentication, the rest find
	// the restored session on their turn.
	loginMu sync.Mutex
}

// NewProvider fills config defaults. Start must be called before Acquire.
func NewProvider(cfg Config, log zerolog.Logger) *Provider {
	if cfg.StateFile == "" {
		cfg.StateFile = "storage-state.json"
	}
	if cfg.ProfileDir == "" {
		cfg.ProfileDir = filepath.Join(os.TempDir(), "gphotos-takeout")
	}
	if cfg.LoginTimeout == 0 {
		cfg.LoginTimeout = 2 * time.Minute
	}
	return &Provider{cfg: cfg, log: log}
}

// Start launches the browser and restores persisted session state.
func (p *Provider) Start(ctx context.Context) error {
	if err := os.MkdirAll(p.cfg.ProfileDir, 0700); err != nil {
		return fmt.Errorf("failed to create profile dir: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(p.cfg.ProfileDir),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "en-US,en"),
		chromedp.Flag("accept-lang", "en-US,en"),
		chromedp.Flag("window-size", "1920,1080"),
	)
	if !p.cfg.Headless {
		// undo the three opts implied by chromedp.Headless in the defaults
		opts = append(opts,
			chromedp.Flag("headless", false),
			chromedp.Flag("hide-scrollbars", false),
			chromedp.Flag("mute-audio", false),
		)
	}
	if p.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(p.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	p.allocCancel = allocCancel
	p.browserCtx, p.browserCancel = chromedp.NewContext(allocCtx,
		chromedp.WithLogf(p.cdpLog),
		chromedp.WithErrorf(p.cdpError),
	)
	if err := chromedp.Run(p.browserCtx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}

	// Downloads must be allowed with events enabled for the media-source
	// probe to see them begin; they land in a scratch dir and get cancelled.
	downloadDir := filepath.Join(p.cfg.ProfileDir, "downloads")
	if err := os.MkdirAll(downloadDir, 0700); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}
	if err := chromedp.Run(p.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		return cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true).
			Do(cdp.WithExecutor(ctx, c.Browser))
	})); err != nil {
		return fmt.Errorf("failed to set download behavior: %w", err)
	}

	if err := p.restoreState(p.browserCtx); err != nil {
		p.log.Warn().Err(err).Msg("could not restore session state, will log in fresh")
	}
	return nil
}

// Acquire opens a new tab on the authenticated browsing context and
// returns it as a ready interaction handle.
func (p *Provider) Acquire() (*browser.Handle, error) {
	if p.browserCtx == nil {
		return nil, fmt.Errorf("provider not started: %w", retry.ErrValidation)
	}
	tabCtx, cancel := chromedp.NewContext(p.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	id := p.nextHandle
	p.nextHandle++
	return browser.NewHandle(tabCtx, cancel, id, p.log), nil
}

// Login drives the host's login flow on the given tab until the page
// redirects to the authenticated home, then persists refreshed session
// state. It submits stored credentials when the matching form appears;
// any other page state at the deadline is an authentication failure.
func (p *Provider) Login(ctx context.Context, tab context.Context) error {
	p.loginMu.Lock()
	defer p.loginMu.Unlock()

	p.log.Info().Msg("starting authentication")
	deadline := time.Now().Add(p.cfg.LoginTimeout)

	if err := chromedp.Run(tab, chromedp.Navigate(BaseURL+"/login")); err != nil {
		return fmt.Errorf("failed to navigate to login: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var location string
		if err := chromedp.Run(tab, chromedp.Location(&location)); err != nil {
			return err
		}
		if strings.HasPrefix(location, BaseURL) {
			p.log.Info().Msg("successfully authenticated")
			if err := p.saveState(tab); err != nil {
				p.log.Warn().Err(err).Msg("failed to persist session state")
			}
			return nil
		}
		if strings.Contains(location, "signin/rejected") {
			return fmt.Errorf("host rejected automated login: %w", retry.ErrAuthentication)
		}

		submitted, err := p.submitCredentials(tab, location)
		if err != nil {
			return err
		}
		if !submitted && time.Now().After(deadline) {
			return fmt.Errorf("no login form matched and no redirect at %s: %w", location, retry.ErrAuthentication)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for authentication: %w", retry.ErrAuthentication)
		}
		p.log.Debug().Msgf("not yet authenticated, at %v", location)
		time.Sleep(loginTick)
	}
}

// submitCredentials fills whichever login form the current page shows.
func (p *Provider) submitCredentials(tab context.Context, location string) (bool, error) {
	if strings.Contains(location, "signinchooser") {
		if err := chromedp.Run(tab,
			chromedp.Evaluate(`document.querySelector('[data-authuser][data-item-index="0"]')?.click()`, nil),
		); err != nil {
			return false, err
		}
		return true, nil
	}
	if p.cfg.Email != "" {
		var present bool
		if err := chromedp.Run(tab,
			chromedp.Evaluate(`!!document.querySelector('#identifierId:not([type=hidden])')`, &present),
		); err != nil {
			return false, err
		}
		if present {
			p.log.Info().Msg("submitting account identifier")
			return true, chromedp.Run(tab, chromedp.SendKeys(`#identifierId`, p.cfg.Email+kb.Enter, chromedp.ByQuery))
		}
	}
	if p.cfg.Password != "" {
		var present bool
		if err := chromedp.Run(tab,
			chromedp.Evaluate(`!!document.querySelector('input[name=Passwd]')`, &present),
		); err != nil {
			return false, err
		}
		if present {
			p.log.Info().Msg("submitting credential")
			return true, chromedp.Run(tab, chromedp.SendKeys(`input[name=Passwd]`, p.cfg.Password+kb.Enter, chromedp.ByQuery))
		}
	}
	return false, nil
}

// Refresh re-runs the login flow on the given tab. Used by the retry
// engine's escalation path when a session expires mid-run.
func (p *Provider) Refresh(ctx context.Context, tab context.Context) error {
	p.log.Warn().Msg("refreshing session")
	return p.Login(ctx, tab)
}

// Close shuts the browser down.
func (p *Provider) Close() {
	if p.browserCancel != nil {
		p.browserCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
}

func (p *Provider) cdpLog(format string, v ...any) {
	if !strings.Contains(format, "unhandled") && !strings.Contains(format, "event") {
		p.log.Debug().Msgf(format, v...)
	}
}

func (p *Provider) cdpError(format string, v ...any) {
	if !strings.Contains(format, "unhandled") && !strings.Contains(format, "event") {
		p.log.Error().Msgf(format, v...)
	}
}
