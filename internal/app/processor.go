// Package app ties the layers together: it runs the per-album
// extraction loop and fans album work across a pool of authenticated
// browser tabs.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/blakeNaccarato/google-photos-takeout-model/internal/album"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/extract"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/locator"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/navigator"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/retry"
)

// Processor runs the extraction loop for one album on one surface. It
// loads or creates the album record, reconciles it against the observed
// item count, walks every item that still needs a visit and persists the
// record after each extracted item.
type Processor struct {
	Surface locator.Surface
	Prober  extract.MediaSourceProber
	Store   *album.Store
	Recover retry.Recoverer
	Log     zerolog.Logger
	Engine  retry.Engine
}

// ProcessAlbum extracts url's album. With overwrite set every item is
// re-extracted from the start; otherwise complete items are skipped and
// traversal resumes at the first incomplete one.
func (p *Processor) ProcessAlbum(ctx context.Context, url string, overwrite bool) (*album.Album, error) {
	nav := navigator.New(p.Surface, p.Log)
	nav.Engine = p.Engine
	ext := extract.New(p.Surface, p.Prober, p.Log)
	ext.Engine = p.Engine

	if err := nav.GotoAlbum(ctx, url); err != nil {
		return nil, err
	}

	title, err := p.albumTitle(ctx)
	if err != nil {
		return nil, err
	}
	log := p.Log.With().Str("album", title).Logger()

	alb, err := p.Store.Load(title)
	if err != nil {
		return nil, err
	}
	if alb == nil {
		alb = &album.Album{Title: title, SourceURL: url}
	}
	alb.SourceURL = url

	count, err := p.itemCount(ctx)
	if err != nil {
		return nil, err
	}
	if drift := alb.Reconcile(count); drift != nil {
		log.Warn().Int("stored", drift.Stored).Int("observed", drift.Observed).
			Msg("album item count changed since last run")
		if err := p.Store.Save(alb); err != nil {
			return nil, err
		}
	}

	start := 0
	if !overwrite {
		start = alb.FirstIncomplete()
	}
	total := len(alb.Items)
	if start >= total {
		log.Info().Int("items", total).Msg("album already extracted")
		return alb, nil
	}
	log.Info().Int("items", total).Int("start", start).Msg("extracting album")

	if err := p.position(ctx, nav, alb, start); err != nil {
		return nil, err
	}

	for i := start; i < total; i++ {
		if i > start {
			if err := nav.Advance(ctx); err != nil {
				return nil, err
			}
		}
		if !overwrite && alb.Items[i].Complete() {
			log.Debug().Int("item", i).Msg("already extracted, skipping")
			continue
		}
		meta, err := ext.ExtractCurrent(ctx, p.Recover)
		if err != nil {
			return nil, err
		}
		alb.Items[i] = meta
		if err := p.Store.Save(alb); err != nil {
			return nil, err
		}
		log.Info().Int("item", i+1).Int("total", total).Msg("extracted item")
	}
	return alb, nil
}

// position moves the cursor to the item traversal starts at. A fresh or
// overwritten run opens the first grid item; a resumed run skips to the
// last known URL instead of replaying every advance.
func (p *Processor) position(ctx context.Context, nav *navigator.Navigator, alb *album.Album, start int) error {
	if start == 0 {
		return nav.GotoFirst(ctx)
	}
	if u := alb.Items[start].ItemURL; u != "" {
		if err := nav.SkipToURL(ctx, u); err != nil {
			return err
		}
		return nav.RevealInfo(ctx)
	}
	if err := nav.SkipToURL(ctx, alb.Items[start-1].ItemURL); err != nil {
		return err
	}
	if err := nav.RevealInfo(ctx); err != nil {
		return err
	}
	return nav.Advance(ctx)
}

// albumTitle reads the page title, stripped of host chrome, retrying
// while the title has not rendered yet.
func (p *Processor) albumTitle(ctx context.Context) (string, error) {
	var title string
	err := p.Engine.Fast.Do(ctx, p.Log, "read album title", func(ctx context.Context) error {
		raw, err := p.Surface.Title(ctx)
		if err != nil {
			return err
		}
		title = locator.TrimAlbumTitle(raw)
		if title == "" {
			return fmt.Errorf("album title not rendered: %w", retry.ErrTransientLocal)
		}
		return nil
	})
	return title, err
}

// itemCount reads the album's reported item count. A count that never
// renders means an empty album, not a failure.
func (p *Processor) itemCount(ctx context.Context) (int, error) {
	var count int
	err := p.Engine.Fast.Do(ctx, p.Log, "read album item count", func(ctx context.Context) error {
		n, err := p.Surface.ItemCount(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("item count not rendered: %w", retry.ErrTransientLocal)
		}
		count = n
		return nil
	})
	if err != nil && !errors.Is(err, retry.ErrExhausted) {
		return 0, err
	}
	return count, nil
}
