// Package locator maps semantic UI concepts of the Google Photos item
// view (info panel, details rows, people tags, album tags, geo position,
// item counter) onto queries against the current page state. It is a
// pure translation layer: no retries, no waits. Callers own timing.
package locator

import "context"

// Surface is one open, navigable page bound to a browsing context. All
// element queries and input events for an item happen through it.
//
// The chromedp-backed implementation is CDP; tests substitute fakes.
type Surface interface {
	// Location returns the page's current resolved URL.
	Location(ctx context.Context) (string, error)
	// Navigate loads url and waits for the document body to exist.
	Navigate(ctx context.Context, url string) error
	// Reload reloads the current page.
	Reload(ctx context.Context) error
	// Title returns the current page title.
	Title(ctx context.Context) (string, error)

	// ClickFirstPhoto clicks the first eligible item link in the album
	// grid, skipping navigation chrome ("Back", "Goog…", "Play…" links).
	ClickFirstPhoto(ctx context.Context) error
	// PressNext invokes the host's next-item control (right arrow).
	PressNext(ctx context.Context) error
	// PressInfoShortcut presses "i", toggling the info panel.
	PressInfoShortcut(ctx context.Context) error
	// InfoVisible reports whether the info panel is currently rendered.
	InfoVisible(ctx context.Context) (bool, error)

	// AlbumTags returns the names of albums the current item belongs to,
	// read from the info panel links matching the "<N> items" pattern.
	// An unrendered panel yields an empty slice, not an error.
	AlbumTags(ctx context.Context) ([]string, error)
	// DetailsRows returns the raw descriptive rows of the info panel
	// (file name, size, dimensions, date), in panel order.
	DetailsRows(ctx context.Context) ([]string, error)
	// PeopleTags returns the tagged-person names of the current item.
	PeopleTags(ctx context.Context) ([]string, error)
	// Position returns the geo-position string, or "" when the item
	// carries no location tag.
	Position(ctx context.Context) (string, error)
	// ItemCount returns the album's reported item count, parsed from the
	// page-description meta value. A missing meta value yields 0.
	ItemCount(ctx context.Context) (int, error)
	// PhotoVisible reports whether the media element itself rendered.
	PhotoVisible(ctx context.Context) (bool, error)
}
