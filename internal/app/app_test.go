package app

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blakeNaccarato/google-photos-takeout-model/internal/album"
	"github.com/blakeNaccarato/google-photos-takeout-model/internal/retry"
)

type fakeItem struct {
	url      string
	albums   []string
	details  []string
	people   []string
	position string
}

// fakeAlbumSurface simulates one album: a grid page plus an ordered item
// view the next-item control steps through.
type fakeAlbumSurface struct {
	albumURL string
	title    string
	count    int // reported item count; 0 means len(items)
	items    []fakeItem

	location string
	cur      int // item index, -1 on the grid
	clicks   int
	presses  int
}

func newFakeAlbum(items ...fakeItem) *fakeAlbumSurface {
	return &fakeAlbumSurface{
		albumURL: "https://photos.google.com/share/trip",
		title:    "Trip",
		items:    items,
		cur:      -1,
	}
}

func (f *fakeAlbumSurface) Location(context.Context) (string, error) { return f.location, nil }

func (f *fakeAlbumSurface) Navigate(_ context.Context, url string) error {
	f.location = url
	f.cur = -1
	for i, it := range f.items {
		if it.url == url {
			f.cur = i
		}
	}
	return nil
}

func (f *fakeAlbumSurface) Reload(context.Context) error { return nil }

func (f *fakeAlbumSurface) Title(context.Context) (string, error) {
	return f.title + " - Google Photos", nil
}

func (f *fakeAlbumSurface) ClickFirstPhoto(context.Context) error {
	f.clicks++
	f.cur = 0
	f.location = f.items[0].url
	return nil
}

func (f *fakeAlbumSurface) PressNext(context.Context) error {
	f.presses++
	if f.cur+1 < len(f.items) {
		f.cur++
		f.location = f.items[f.cur].url
	}
	return nil
}

func (f *fakeAlbumSurface) PressInfoShortcut(context.Context) error   { return nil }
func (f *fakeAlbumSurface) InfoVisible(context.Context) (bool, error) { return true, nil }

func (f *fakeAlbumSurface) AlbumTags(context.Context) ([]string, error) {
	if f.cur < 0 {
		return nil, nil
	}
	return f.items[f.cur].albums, nil
}

func (f *fakeAlbumSurface) DetailsRows(context.Context) ([]string, error) {
	if f.cur < 0 {
		return nil, nil
	}
	return f.items[f.cur].details, nil
}

func (f *fakeAlbumSurface) PeopleTags(context.Context) ([]string, error) {
	if f.cur < 0 {
		return nil, nil
	}
	return f.items[f.cur].people, nil
}

func (f *fakeAlbumSurface) Position(context.Context) (string, error) {
	if f.cur < 0 {
		return "", nil
	}
	return f.items[f.cur].position, nil
}

func (f *fakeAlbumSurface) ItemCount(context.Context) (int, error) {
	if f.count > 0 {
		return f.count, nil
	}
	return len(f.items), nil
}

func (f *fakeAlbumSurface) PhotoVisible(context.Context) (bool, error) { return true, nil }

func item(n string) fakeItem {
	return fakeItem{
		url:     "https://photos.google.com/share/trip/photo/" + n,
		albums:  []string{"Trip"},
		details: []string{"IMG_" + n + ".jpg", "2.0 MB"},
	}
}

func newProcessor(t *testing.T, f *fakeAlbumSurface) *Processor {
	t.Helper()
	store, err := album.NewStore(t.TempDir())
	require.NoError(t, err)
	quick := retry.Policy{Attempts: 3, Timeout: time.Second, WaitInitial: time.Millisecond, WaitMax: 2 * time.Millisecond, ExpBase: 1.5}
	return &Processor{
		Surface: f,
		Store:   store,
		Recover: retry.RecoverFunc(func(context.Context) error { return nil }),
		Log:     zerolog.Nop(),
		Engine:  retry.Engine{Fast: quick, Slow: quick},
	}
}

func TestProcessAlbumExtractsEveryItem(t *testing.T) {
	f := newFakeAlbum(item("1"), item("2"), item("3"))
	p := newProcessor(t, f)

	alb, err := p.ProcessAlbum(context.Background(), f.albumURL, false)
	require.NoError(t, err)
	require.Len(t, alb.Items, 3)
	for i, m := range alb.Items {
		assert.True(t, m.Complete(), "item %d must be complete", i)
	}
	assert.Equal(t, f.items[1].url, alb.Items[1].ItemURL)
	assert.Equal(t, 1, f.clicks)
	assert.Equal(t, 2, f.presses)

	stored, err := p.Store.Load("Trip")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, alb.Items, stored.Items)
}

func TestProcessAlbumIsIdempotent(t *testing.T) {
	f := newFakeAlbum(item("1"), item("2"))
	p := newProcessor(t, f)

	_, err := p.ProcessAlbum(context.Background(), f.albumURL, false)
	require.NoError(t, err)
	before, err := os.ReadFile(p.Store.Path("Trip"))
	require.NoError(t, err)

	f.clicks, f.presses = 0, 0
	_, err = p.ProcessAlbum(context.Background(), f.albumURL, false)
	require.NoError(t, err)

	assert.Equal(t, 0, f.clicks, "a complete album must not be traversed again")
	assert.Equal(t, 0, f.presses)
	after, err := os.ReadFile(p.Store.Path("Trip"))
	require.NoError(t, err)
	assert.Equal(t, before, after, "the record must not change")
}

func TestProcessAlbumResumesAtFirstIncomplete(t *testing.T) {
	f := newFakeAlbum(item("1"), item("2"), item("3"))
	p := newProcessor(t, f)

	// Item 1 was extracted by an earlier run; its record must survive
	// untouched even though the live page now shows different details.
	require.NoError(t, p.Store.Save(&album.Album{
		Title:     "Trip",
		SourceURL: f.albumURL,
		Items: []album.ItemMetadata{
			{ItemURL: f.items[0].url, Details: []string{"from earlier run"}},
			{},
			{},
		},
	}))

	alb, err := p.ProcessAlbum(context.Background(), f.albumURL, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"from earlier run"}, alb.Items[0].Details)
	assert.True(t, alb.Items[1].Complete())
	assert.True(t, alb.Items[2].Complete())
	assert.Equal(t, 0, f.clicks, "resume must skip directly to the last known item")
	assert.Equal(t, 2, f.presses)
}

func TestProcessAlbumOverwriteReextracts(t *testing.T) {
	f := newFakeAlbum(item("1"), item("2"))
	p := newProcessor(t, f)

	require.NoError(t, p.Store.Save(&album.Album{
		Title:     "Trip",
		SourceURL: f.albumURL,
		Items: []album.ItemMetadata{
			{ItemURL: f.items[0].url, Details: []string{"stale"}},
			{ItemURL: f.items[1].url, Details: []string{"stale"}},
		},
	}))

	alb, err := p.ProcessAlbum(context.Background(), f.albumURL, true)
	require.NoError(t, err)
	assert.Equal(t, f.items[0].details, alb.Items[0].Details)
	assert.Equal(t, f.items[1].details, alb.Items[1].Details)
	assert.Equal(t, 1, f.clicks)
}

func TestProcessAlbumShrunkAlbumOrphansTrailingItems(t *testing.T) {
	f := newFakeAlbum(item("1"), item("2"), item("3"))
	p := newProcessor(t, f)

	require.NoError(t, p.Store.Save(&album.Album{
		Title:     "Trip",
		SourceURL: f.albumURL,
		Items: []album.ItemMetadata{
			{ItemURL: f.items[0].url, Details: []string{"a"}},
			{ItemURL: f.items[1].url, Details: []string{"b"}},
			{ItemURL: f.items[2].url, Details: []string{"c"}},
			{ItemURL: "https://photos.google.com/share/trip/photo/gone", Details: []string{"d"}},
		},
	}))

	alb, err := p.ProcessAlbum(context.Background(), f.albumURL, false)
	require.NoError(t, err)
	assert.Len(t, alb.Items, 3)
	require.Len(t, alb.Orphaned, 1)
	assert.Equal(t, []string{"d"}, alb.Orphaned[0].Details)
	assert.Equal(t, 0, f.clicks)
	assert.Equal(t, 0, f.presses)

	stored, err := p.Store.Load("Trip")
	require.NoError(t, err)
	assert.Len(t, stored.Orphaned, 1, "the reconciled record must be persisted")
}

func TestProcessAlbumGrownAlbumExtendsRecord(t *testing.T) {
	f := newFakeAlbum(item("1"), item("2"), item("3"))
	p := newProcessor(t, f)

	require.NoError(t, p.Store.Save(&album.Album{
		Title:     "Trip",
		SourceURL: f.albumURL,
		Items: []album.ItemMetadata{
			{ItemURL: f.items[0].url, Details: []string{"a"}},
			{ItemURL: f.items[1].url, Details: []string{"b"}},
		},
	}))

	alb, err := p.ProcessAlbum(context.Background(), f.albumURL, false)
	require.NoError(t, err)
	require.Len(t, alb.Items, 3)
	assert.Equal(t, []string{"a"}, alb.Items[0].Details)
	assert.True(t, alb.Items[2].Complete())
	assert.Equal(t, 0, f.clicks, "resume must skip to the last known item, not the grid")
}
