package harvest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/profileharvest/internal/browser"
)

var snapshotFiles = []string{
	filepath.Join("testdata", "page-001.html"),
	filepath.Join("testdata", "page-002.html"),
}

func newTestSnapshotPage(files []string) *SnapshotPage {
	return NewSnapshotPage(files, testLayout(), log.New(&bytes.Buffer{}))
}

func TestSnapshotPageFields(t *testing.T) {
	p := newTestSnapshotPage(snapshotFiles)
	require.NoError(t, p.Load(context.Background(), "golang"))
	require.NoError(t, p.Prepare(context.Background()))

	tests := []struct {
		row  int
		kind FieldKind
		want string
	}{
		{1, FieldName, "Ada Lovelace"},
		{1, FieldTitle, "Principal Engineer at Analytical Engines"},
		{1, FieldLocation, "London, England"},
		{1, FieldSummary, "Current: Notes on the analytical engine"},
		{1, FieldConnections, "500+ connections"},
		{1, FieldLink, "https://www.linkedin.com/in/ada-lovelace"},
		{2, FieldName, "LinkedIn Member"},
		{2, FieldLocation, Unavailable},
		{2, FieldLink, Unavailable},
		{3, FieldName, Unavailable},
		{3, FieldLink, Unavailable},
		{11, FieldName, Unavailable},
	}
	for _, tt := range tests {
		got, err := p.Field(context.Background(), tt.row, tt.kind)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "row %d %s", tt.row, tt.kind)
	}
}

func TestSnapshotHarvest(t *testing.T) {
	page := newTestSnapshotPage(snapshotFiles)
	h := New(page, Options{Pacer: browser.Instant(), Logger: log.New(&bytes.Buffer{})})

	res, err := h.Harvest(context.Background(), "golang", 10)
	require.NoError(t, err)

	want := []Record{
		{
			Name:        "Ada Lovelace",
			Title:       "Principal Engineer at Analytical Engines",
			Location:    "London, England",
			Summary:     "Current: Notes on the analytical engine",
			Connections: "500+ connections",
			ProfileLink: "https://www.linkedin.com/in/ada-lovelace",
		},
		{
			Name:        "LinkedIn Member",
			Title:       "Go developer",
			Location:    Unavailable,
			Summary:     Unavailable,
			Connections: Unavailable,
			ProfileLink: Unavailable,
		},
		{
			Name:        "Grace Hopper",
			Title:       "Rear Admiral",
			Location:    "Arlington, Virginia",
			Summary:     Unavailable,
			Connections: Unavailable,
			ProfileLink: "https://www.linkedin.com/in/grace-hopper",
		},
		{
			Name:        Unavailable,
			Title:       Unavailable,
			Location:    Unavailable,
			Summary:     Unavailable,
			Connections: "3rd+",
			ProfileLink: "https://www.linkedin.com/in/ken-thompson",
		},
	}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, StopExhausted, res.Stop)
	// page one reads ten rows, page two only the eight still needed
	assert.Equal(t, 14, res.Rejected)
}

func TestSnapshotAdvance(t *testing.T) {
	t.Run("enabled control without a following file", func(t *testing.T) {
		p := newTestSnapshotPage(snapshotFiles[:1])
		require.NoError(t, p.Load(context.Background(), "golang"))
		assert.False(t, p.Advance(context.Background()))
	})

	t.Run("unreadable next file", func(t *testing.T) {
		p := newTestSnapshotPage([]string{snapshotFiles[0], filepath.Join(t.TempDir(), "missing.html")})
		require.NoError(t, p.Load(context.Background(), "golang"))
		assert.False(t, p.Advance(context.Background()))
	})

	t.Run("no files", func(t *testing.T) {
		assert.Error(t, newTestSnapshotPage(nil).Load(context.Background(), "golang"))
	})
}

func TestSnapshotRoundTripsDumpedPages(t *testing.T) {
	dir := t.TempDir()
	raw, err := os.ReadFile(snapshotFiles[1])
	require.NoError(t, err)
	path := filepath.Join(dir, SnapshotName(1))
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	p := newTestSnapshotPage([]string{path})
	require.NoError(t, p.Load(context.Background(), "dump"))
	name, err := p.Field(context.Background(), 1, FieldName)
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", name)
}
