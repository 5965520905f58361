package album

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAlbum() *Album {
	return &Album{
		Title:     "Hiking 2024",
		SourceURL: "https://photos.google.com/share/abc",
		Items: []ItemMetadata{
			{
				ItemURL:  "https://photos.google.com/share/abc/photo/1",
				People:   []string{"Ada", "Grace"},
				Albums:   []string{"Hiking 2024", "Favorites"},
				Details:  []string{"IMG_0001.jpg", "3.1 MB", "4032 × 3024", "Jun 2, 2024"},
				Position: "47.6, -122.3",
			},
			{},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	alb := sampleAlbum()
	require.NoError(t, s.Save(alb))

	loaded, err := s.Load(alb.Title)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, alb, loaded)

	// A second save of the loaded record must be byte-for-byte identical.
	first, err := os.ReadFile(s.Path(alb.Title))
	require.NoError(t, err)
	require.NoError(t, s.Save(loaded))
	second, err := os.ReadFile(s.Path(alb.Title))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, byte('\n'), first[len(first)-1])
}

func TestLoadMissingAlbumReturnsNil(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	alb, err := s.Load("never saved")
	require.NoError(t, err)
	assert.Nil(t, alb)
}

func TestLoadIgnoresUnknownFields(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	doc := `{"title":"Legacy","sourceUrl":"https://photos.google.com/share/x","items":[],"futureField":42}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Legacy.json"), []byte(doc), 0600))

	alb, err := s.Load("Legacy")
	require.NoError(t, err)
	require.NotNil(t, alb)
	assert.Equal(t, "Legacy", alb.Title)
}

func TestSanitizeTitle(t *testing.T) {
	assert.Equal(t, "Trip_ Italy", SanitizeTitle("Trip/ Italy"))
	assert.Equal(t, "a_b_c", SanitizeTitle(`a:b*c`))
	assert.Equal(t, "untitled", SanitizeTitle("   "))
	assert.Equal(t, "dots", SanitizeTitle("dots..."))
}

func TestReconcileGrowth(t *testing.T) {
	alb := sampleAlbum()
	drift := alb.Reconcile(4)
	require.NotNil(t, drift)
	assert.Equal(t, Drift{Stored: 2, Observed: 4}, *drift)
	assert.Len(t, alb.Items, 4)
	assert.True(t, alb.Items[0].Complete(), "existing data must survive growth")
	assert.False(t, alb.Items[2].Complete())
}

func TestReconcileShrinkOrphansCompleteItems(t *testing.T) {
	alb := &Album{Items: []ItemMetadata{
		{ItemURL: "u0", Details: []string{"d"}},
		{ItemURL: "u1", Details: []string{"d"}},
		{},
	}}
	drift := alb.Reconcile(1)
	require.NotNil(t, drift)
	assert.Len(t, alb.Items, 1)
	require.Len(t, alb.Orphaned, 1)
	assert.Equal(t, "u1", alb.Orphaned[0].ItemURL)
}

func TestReconcileNoDrift(t *testing.T) {
	alb := sampleAlbum()
	assert.Nil(t, alb.Reconcile(2))

	empty := &Album{}
	assert.Nil(t, empty.Reconcile(3), "first sizing of a fresh record is not drift")
	assert.Len(t, empty.Items, 3)
}

func TestFirstIncomplete(t *testing.T) {
	alb := sampleAlbum()
	assert.Equal(t, 1, alb.FirstIncomplete())

	alb.Items[1] = ItemMetadata{ItemURL: "u", Details: []string{"d"}}
	assert.Equal(t, 2, alb.FirstIncomplete())

	assert.Equal(t, 0, (&Album{}).FirstIncomplete())
}
