// Package extract reads the fixed set of structured fields from the
// currently displayed item and assembles a metadata record. Optional
// fields (no geo tag, no people tags, zero-byte media without a
// downloadable source) degrade to empty values instead of failing the
// extraction.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/blakeNaccarato/google-photos-takeout-model/internal/album"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/locator"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/retry"
)

// zeroByteMarker appears in the details of media whose source is gone;
// such items have no downloadable source and must not trigger a download.
const zeroByteMarker = "(0 B)"

// MediaSourceProber captures the URL the host would serve for the
// current item's media, without completing the transfer.
type MediaSourceProber interface {
	ProbeMediaSource(ctx context.Context) (string, error)
}

// Extractor assembles one record per stopped-on item.
type Extractor struct {
	surface locator.Surface
	prober  MediaSourceProber
	log     zerolog.Logger

	// Engine supplies the retry tiers for flaky panel reads.
	Engine retry.Engine
}

// New returns an extractor over the given surface. prober may be nil, in
// which case the download field stays empty.
func New(surface locator.Surface, prober MediaSourceProber, log zerolog.Logger) *Extractor {
	return &Extractor{surface: surface, prober: prober, log: log, Engine: retry.DefaultEngine()}
}

// ExtractCurrent reads the current item's metadata. Unrendered panel
// state retries under the fast tier; exhaustion escalates through rec
// (reload or re-auth) and one slow retry. The item URL is read last,
// from the surface's resolved location, to minimize the race between
// render completion and URL capture.
func (e *Extractor) ExtractCurrent(ctx context.Context, rec retry.Recoverer) (album.ItemMetadata, error) {
	var meta album.ItemMetadata
	err := e.Engine.DoWithRecovery(ctx, e.log, "extract item metadata", rec, func(ctx context.Context) error {
		albums, err := e.surface.AlbumTags(ctx)
		if err != nil {
			return err
		}
		if len(albums) == 0 {
			// The common cause is an info panel that has not rendered.
			return fmt.Errorf("albums element not loaded: %w", retry.ErrTransientLocal)
		}

		position, err := e.surface.Position(ctx)
		if err != nil {
			return err
		}

		details, err := e.surface.DetailsRows(ctx)
		if err != nil {
			return err
		}
		if position != "" && (len(details) == 0 || details[len(details)-1] == "") {
			return fmt.Errorf("location element not loaded: %w", retry.ErrTransientLocal)
		}

		people := e.people(ctx)

		url, err := e.surface.Location(ctx)
		if err != nil {
			return err
		}

		meta = album.ItemMetadata{
			ItemURL:  url,
			People:   people,
			Albums:   normalize(albums),
			Details:  normalize(details),
			Position: position,
		}
		return nil
	})
	if err != nil {
		return album.ItemMetadata{}, err
	}

	meta.Download = e.mediaSource(ctx, meta.Details)
	return meta, nil
}

// people reads the tagged-person names. People tagging is not guaranteed
// present, so exhausting the fast tier yields an empty list.
func (e *Extractor) people(ctx context.Context) []string {
	var people []string
	err := e.Engine.Fast.Do(ctx, e.log, "read people tags", func(ctx context.Context) error {
		tags, err := e.surface.PeopleTags(ctx)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			return fmt.Errorf("people element not loaded or people not found: %w", retry.ErrTransientLocal)
		}
		people = tags
		return nil
	})
	if err != nil {
		e.log.Trace().Msg("no people tags on this item")
		return nil
	}
	return normalize(people)
}

// mediaSource resolves the downloadable source URL of the current item.
// Zero-byte media with no visible photo element has no source and must
// not trigger a download. Probe failures degrade to an empty source.
func (e *Extractor) mediaSource(ctx context.Context, details []string) string {
	if e.prober == nil {
		return ""
	}
	if strings.Contains(strings.Join(details, ""), zeroByteMarker) {
		visible, err := e.surface.PhotoVisible(ctx)
		if err == nil && !visible {
			return ""
		}
	}
	source, err := e.prober.ProbeMediaSource(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("could not probe media source")
		return ""
	}
	return source
}

func normalize(values []string) []string {
	for i, v := range values {
		values[i] = norm.NFC.String(v)
	}
	return values
}
