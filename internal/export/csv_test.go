package export_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pmorrell/setlist-harvester/internal/event"
	"github.com/pmorrell/setlist-harvester/internal/export"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExporter_Export(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exporter, err := export.New(dir, zap.NewNop())
	require.NoError(t, err)

	snapshot := map[string][]event.Record{
		"1969": {
			{
				"date":                "1969-02-27",
				"url":                 "http://x/1",
				"venue":               map[string]any{"name": "Fillmore West", "url": "http://x/venues/1"},
				"band":                map[string]any{"name": "Grateful Dead", "url": "http://x/bands/1"},
				"songs":               "23",
				"category":            "Concert",
				"act_type":            "Headliner",
				"show_id":             "69022701",
				"date_from_title":     "1969-02-27",
				"date_is_placeholder": "Date confirmed by tape",
				"setlist":             []string{"Dark Star", "St. Stephen"},
				"musicians": []event.Musician{
					{Name: "Jerry Garcia", Instrument: "guitar"},
					{Name: "Ron McKernan"},
				},
				"notes":       []string{"Released officially."},
				"enriched_at": "2026-08-01T00:00:00Z",
			},
		},
		"1970": {},
		"1971": {
			{"url": "http://x/2"},
		},
	}

	paths, err := exporter.Export(snapshot)
	require.NoError(t, err)
	// Empty years produce no file.
	require.Equal(t, []string{
		filepath.Join(dir, "events_1969.csv"),
		filepath.Join(dir, "events_1971.csv"),
	}, paths)

	rows := readCSV(t, paths[0])
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"year", "date", "url", "venue", "band", "songs", "category",
		"act_type", "show_id", "date_from_title", "date_is_placeholder",
		"setlist", "musicians", "notes",
	}, rows[0])
	assert.Equal(t, []string{
		"1969", "1969-02-27", "http://x/1", "Fillmore West", "Grateful Dead",
		"23", "Concert", "Headliner", "69022701", "1969-02-27",
		"Date confirmed by tape", "Dark Star, St. Stephen",
		"Jerry Garcia - guitar, Ron McKernan", "Released officially.",
	}, rows[1])

	sparse := readCSV(t, paths[1])
	require.Len(t, sparse, 2)
	assert.Equal(t, "1971", sparse[1][0])
	assert.Equal(t, "http://x/2", sparse[1][2])
	assert.Equal(t, "", sparse[1][3])
}

func TestExporter_RoundTrippedRecords(t *testing.T) {
	t.Parallel()

	// Records reloaded from disk carry []any and map[string]any instead of
	// the typed slices; the cells must come out identical.
	raw := []byte(`{"1969":[{"url":"http://x/1","setlist":["Dark Star"],"musicians":[{"name":"Jerry Garcia","instrument":"guitar"}]}]}`)
	ds, err := event.DecodeDataset(raw)
	require.NoError(t, err)

	dir := t.TempDir()
	exporter, err := export.New(dir, zap.NewNop())
	require.NoError(t, err)

	paths, err := exporter.Export(ds.Snapshot())
	require.NoError(t, err)
	require.Len(t, paths, 1)

	rows := readCSV(t, paths[0])
	require.Len(t, rows, 2)
	assert.Equal(t, "Dark Star", rows[1][11])
	assert.Equal(t, "Jerry Garcia - guitar", rows[1][12])
}

func TestNew_RequiresDirectory(t *testing.T) {
	t.Parallel()

	_, err := export.New("  ", zap.NewNop())
	assert.Error(t, err)
}
