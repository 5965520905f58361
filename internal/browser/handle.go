// Package browser owns interaction handles: open tabs bound to one
// browsing context each, plus the fixed pool that fans work across them.
package browser

import (
	"context"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Download describes a download the browser is about to perform. The
// media-source probe records URL and then cancels the transfer.
type Download struct {
	GUID              string
	URL               string
	SuggestedFilename string
}

// Handle is one open tab. Handles are not safe for concurrent use; every
// logical task must hold the handle's lock around its UI-touching section.
type Handle struct {
	id        int
	ctx       context.Context
	cancel    context.CancelFunc
	downloads chan Download
	closeOnce sync.Once
	mu        sync.Mutex
	log       zerolog.Logger
}

// NewHandle wraps an established chromedp tab context. It starts the
// download listener used by the media-source probe.
func NewHandle(ctx context.Context, cancel context.CancelFunc, id int, log zerolog.Logger) *Handle {
	h := &Handle{
		id:        id,
		ctx:       ctx,
		cancel:    cancel,
		downloads: make(chan Download, 4),
		log:       log.With().Int("handleId", id).Logger(),
	}
	chromedp.ListenBrowser(ctx, func(v interface{}) {
		if ev, ok := v.(*cdpbrowser.EventDownloadWillBegin); ok {
			h.log.Debug().Str("GUID", ev.GUID).Msgf("download of %s beginning", ev.SuggestedFilename)
			select {
			case h.downloads <- Download{GUID: ev.GUID, URL: ev.URL, SuggestedFilename: ev.SuggestedFilename}:
			default:
			}
		}
	})
	return h
}

// ID identifies the handle in logs and round-robin assignment.
func (h *Handle) ID() int { return h.id }

// Context returns the tab context all chromedp actions run against.
func (h *Handle) Context() context.Context { return h.ctx }

// Downloads exposes begun downloads observed on this browsing context.
func (h *Handle) Downloads() <-chan Download { return h.downloads }

// Lock serializes use of the tab and returns the unlock function.
func (h *Handle) Lock(forWhat string) func() {
	h.log.Trace().Msgf("acquiring tab lock %s", forWhat)
	start := time.Now()
	h.mu.Lock()
	dur := time.Since(start)
	h.log.Debug().Int64("duration", dur.Milliseconds()).Msgf("acquired tab lock %s", forWhat)
	if dur > 10*time.Second {
		h.log.Warn().Int64("duration", dur.Milliseconds()).Msgf("acquiring tab lock %s took %d ms, consider reducing concurrency", forWhat, dur.Milliseconds())
	}
	return h.mu.Unlock
}

// DrainDownloads discards download events left over from earlier probes.
func (h *Handle) DrainDownloads() {
	for {
		select {
		case <-h.downloads:
		default:
			return
		}
	}
}

// Close tears down the tab. Safe to call more than once.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		if h.cancel != nil {
			h.cancel()
		}
	})
}
