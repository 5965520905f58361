package locator

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/blakeNaccarato/google-photos-takeout-model/internal/retry"
)

// CDP implements Surface against a chromedp tab context. It is stateless;
// the tab is whatever context the call carries.
type CDP struct{}

// mainExpr resolves the visible main region of the item view. Photos
// stacks several [role=main] regions; the last visible one is the item.
const mainExpr = `[...document.querySelectorAll('[role="main"]')].filter(m => getComputedStyle(m).visibility != 'hidden').pop()`

// infoExpr resolves the info panel: the c-wiz adjacent to the recognized
// close-control.
const infoExpr = `(() => {
	const main = ` + mainExpr + `;
	if (!main) return null;
	return [...main.querySelectorAll('c-wiz')].find(w => w.querySelector('button[aria-label="Close info"]')) || null;
})()`

func (CDP) Location(ctx context.Context) (string, error) {
	var location string
	err := chromedp.Run(ctx, chromedp.Location(&location))
	return location, err
}

func (CDP) Navigate(ctx context.Context, url string) error {
	return chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (CDP) Reload(ctx context.Context) error {
	return chromedp.Run(ctx,
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (CDP) Title(ctx context.Context) (string, error) {
	var title string
	err := chromedp.Run(ctx, chromedp.Title(&title))
	return title, err
}

func (CDP) ClickFirstPhoto(ctx context.Context) error {
	var names []string
	listJS := `(() => {
		const main = ` + mainExpr + `;
		if (!main) return [];
		return [...main.querySelectorAll('a[aria-label]')].map(a => a.getAttribute('aria-label') || '');
	})()`
	if err := chromedp.Run(ctx, chromedp.Evaluate(listJS, &names)); err != nil {
		return err
	}
	idx := -1
	for i, name := range names {
		if EligibleItemName(name) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("first photo link not found: %w", retry.ErrTransientLocal)
	}
	var clicked bool
	clickJS := fmt.Sprintf(`(() => {
		const main = %s;
		if (!main) return false;
		const link = [...main.querySelectorAll('a[aria-label]')][%d];
		if (!link) return false;
		link.click();
		return true;
	})()`, mainExpr, idx)
	if err := chromedp.Run(ctx, chromedp.Evaluate(clickJS, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("first photo link went away: %w", retry.ErrTransientLocal)
	}
	return nil
}

func (CDP) PressNext(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.KeyEvent(kb.ArrowRight))
}

func (CDP) PressInfoShortcut(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.KeyEvent("i"))
}

func (CDP) InfoVisible(ctx context.Context) (bool, error) {
	var visible bool
	js := `(() => {
		const info = ` + infoExpr + `;
		return !!info && getComputedStyle(info).visibility != 'hidden' && info.getBoundingClientRect().width > 0;
	})()`
	err := chromedp.Run(ctx, chromedp.Evaluate(js, &visible))
	return visible, err
}

func (CDP) AlbumTags(ctx context.Context) ([]string, error) {
	var tags []string
	js := `(() => {
		const info = ` + infoExpr + `;
		if (!info) return [];
		return [...info.querySelectorAll('a')]
			.filter(a => /\d[\d,]*\s+items?/.test((a.getAttribute('aria-label') || '') + ' ' + a.innerText))
			.map(a => a.innerText.trim())
			.filter(t => t.length > 0);
	})()`
	err := chromedp.Run(ctx, chromedp.Evaluate(js, &tags))
	return tags, err
}

func (CDP) DetailsRows(ctx context.Context) ([]string, error) {
	var rows []string
	js := `(() => {
		const info = ` + infoExpr + `;
		if (!info) return [];
		return [...info.querySelectorAll('div')]
			.filter(d => d.querySelector(':scope > dt > svg'))
			.map(d => d.innerText.trim());
	})()`
	err := chromedp.Run(ctx, chromedp.Evaluate(js, &rows))
	return rows, err
}

func (CDP) PeopleTags(ctx context.Context) ([]string, error) {
	var people []string
	js := `(() => {
		const info = ` + infoExpr + `;
		if (!info) return [];
		return [...info.querySelectorAll('a[aria-label^="Photo of "]')]
			.map(a => (a.getAttribute('aria-label') || '').replace(/^Photo of /, '').trim())
			.filter(p => p.length > 0);
	})()`
	err := chromedp.Run(ctx, chromedp.Evaluate(js, &people))
	return people, err
}

func (CDP) Position(ctx context.Context) (string, error) {
	var position string
	js := `(() => {
		const map = [...document.querySelectorAll('a')].find(a => (a.getAttribute('aria-label') || '').trim() == 'Map');
		if (!map) return '';
		const tagged = map.querySelector('[position]');
		return tagged ? (tagged.getAttribute('position') || '') : '';
	})()`
	err := chromedp.Run(ctx, chromedp.Evaluate(js, &position))
	return position, err
}

func (CDP) ItemCount(ctx context.Context) (int, error) {
	var content string
	js := `document.querySelector('meta[property="og:description"][content*="` + itemCountMarker + `"]')?.getAttribute('content') || ''`
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &content)); err != nil {
		return 0, err
	}
	return ParseItemCount(content), nil
}

func (CDP) PhotoVisible(ctx context.Context) (bool, error) {
	var visible bool
	js := `(() => {
		const main = ` + mainExpr + `;
		if (!main) return false;
		const img = main.querySelector('img[aria-label^="Photo - "], video');
		return !!img && img.getBoundingClientRect().width > 0;
	})()`
	err := chromedp.Run(ctx, chromedp.Evaluate(js, &visible))
	return visible, err
}
