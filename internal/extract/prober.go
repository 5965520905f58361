package extract

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/blakeNaccarato/google-photos-takeout-model/internal/browser"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/retry"
)

// probeMu serializes probes across handles: download events arrive at
// browser level and cannot be attributed to the tab that caused them.
var probeMu sync.Mutex

// HandleProber captures an item's media source by pressing the host's
// download shortcut, recording the URL of the download that begins, and
// cancelling it before any data transfer completes.
type HandleProber struct {
	Handle  *browser.Handle
	Timeout time.Duration
}

func (p *HandleProber) ProbeMediaSource(ctx context.Context) (string, error) {
	probeMu.Lock()
	defer probeMu.Unlock()

	timeout := p.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	p.Handle.DrainDownloads()
	if err := pressKey(ctx, "D", input.ModifierShift); err != nil {
		return "", fmt.Errorf("could not press download shortcut: %w", err)
	}

	select {
	case d := <-p.Handle.Downloads():
		if err := cancelDownload(ctx, d.GUID); err != nil {
			// The URL is already captured; a failed cancel only costs bandwidth.
			return d.URL, nil
		}
		return d.URL, nil
	case <-time.After(timeout):
		return "", fmt.Errorf("download did not begin within %v: %w", timeout, retry.ErrTransientSystemic)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func cancelDownload(ctx context.Context, guid string) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		// Cancellation is a browser-scope command, so it must not carry a
		// session id.
		return cdpbrowser.CancelDownload(guid).Do(cdp.WithExecutor(ctx, c.Browser))
	}))
}

// pressKey dispatches a raw key event pair with the given modifier.
func pressKey(ctx context.Context, key string, modifier input.Modifier) error {
	keyD, ok := kb.Keys[rune(key[0])]
	if !ok {
		return fmt.Errorf("no %s key: %w", key, retry.ErrValidation)
	}

	down := input.DispatchKeyEventParams{
		Key:                   keyD.Key,
		Code:                  keyD.Code,
		NativeVirtualKeyCode:  keyD.Native,
		WindowsVirtualKeyCode: keyD.Windows,
		Type:                  input.KeyDown,
		Modifiers:             modifier,
	}
	if runtime.GOOS == "darwin" {
		down.NativeVirtualKeyCode = 0
	}
	up := down
	up.Type = input.KeyUp

	for _, ev := range []*input.DispatchKeyEventParams{&down, &up} {
		if err := chromedp.Run(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
