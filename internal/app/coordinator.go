package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/blakeNaccarato/google-photos-takeout-model/internal/album"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/browser"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/extract"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/locator"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/retry"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/session"
)

// Options controls a batch run.
type Options struct {
	// Overwrite re-extracts every item instead of resuming at the first
	// incomplete one.
	Overwrite bool
	// Concurrency is the number of tabs albums fan out across.
	Concurrency int
	// Headless hides the browser window.
	Headless bool
}

// Coordinator owns the browser, the tab pool and the album store for one
// batch run. Construction performs the login pre-phase so every worker
// starts authenticated.
type Coordinator struct {
	opts      Options
	provider  *session.Provider
	store     *album.Store
	pool      *browser.Pool
	log       zerolog.Logger
	closeOnce sync.Once
}

// NewCoordinator starts the browser, opens one tab per concurrency slot
// and authenticates. Tabs share the profile's cookie store, so logging
// in on the first handle covers all of them.
func NewCoordinator(ctx context.Context, cfg session.Config, opts Options, storeDir string, log zerolog.Logger) (*Coordinator, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	cfg.Headless = opts.Headless

	store, err := album.NewStore(storeDir)
	if err != nil {
		return nil, err
	}

	provider := session.NewProvider(cfg, log)
	if err := provider.Start(ctx); err != nil {
		return nil, err
	}

	handles := make([]*browser.Handle, 0, opts.Concurrency)
	fail := func(err error) (*Coordinator, error) {
		for _, h := range handles {
			h.Close()
		}
		provider.Close()
		return nil, err
	}
	for i := 0; i < opts.Concurrency; i++ {
		h, err := provider.Acquire()
		if err != nil {
			return fail(err)
		}
		handles = append(handles, h)
	}

	if err := provider.Login(ctx, handles[0].Context()); err != nil {
		return fail(err)
	}

	return &Coordinator{
		opts:     opts,
		provider: provider,
		store:    store,
		pool:     browser.NewPool(handles),
		log:      log,
	}, nil
}

// Run processes every album URL, fanning work across the tab pool. The
// first failing album cancels the rest of the batch.
func (c *Coordinator) Run(ctx context.Context, urls []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.pool.Size())
	var done atomic.Int64
	for i, url := range urls {
		log := c.log.With().Int("workerId", i).Logger()
		g.Go(func() error {
			if err := c.processOn(gctx, log, url, c.opts.Overwrite); err != nil {
				return fmt.Errorf("album %s: %w", url, err)
			}
			log.Info().Msgf("finished album %d of %d", done.Add(1), len(urls))
			return nil
		})
	}
	return g.Wait()
}

// ProcessAlbum extracts a single album on the next pooled tab.
func (c *Coordinator) ProcessAlbum(ctx context.Context, url string, overwrite bool) error {
	return c.processOn(ctx, c.log, url, overwrite)
}

func (c *Coordinator) processOn(ctx context.Context, log zerolog.Logger, url string, overwrite bool) error {
	h := c.pool.Next()
	unlock := h.Lock("for album " + url)
	defer unlock()

	// UI work must run on the tab's own context; a cancelled batch still
	// propagates through the derived one.
	tabCtx, cancel := context.WithCancel(h.Context())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	surface := locator.CDP{}
	proc := &Processor{
		Surface: surface,
		Prober:  &extract.HandleProber{Handle: h},
		Store:   c.store,
		Recover: c.recoverer(h, surface),
		Log:     log,
		Engine:  retry.DefaultEngine(),
	}
	_, err := proc.ProcessAlbum(tabCtx, url, overwrite)
	return err
}

// recoverer is the escalation step between the retry tiers: reload, and
// if the reload lands off the host, re-authenticate the session.
func (c *Coordinator) recoverer(h *browser.Handle, s locator.Surface) retry.Recoverer {
	return retry.RecoverFunc(func(ctx context.Context) error {
		if err := s.Reload(ctx); err != nil {
			return err
		}
		loc, err := s.Location(ctx)
		if err != nil {
			return err
		}
		if strings.HasPrefix(loc, session.BaseURL) {
			return nil
		}
		return c.provider.Refresh(ctx, h.Context())
	})
}

// Close shuts every tab and the browser down. Safe to call more than once.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.pool.Close()
		c.provider.Close()
	})
}
