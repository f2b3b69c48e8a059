// Package export flattens the enriched dataset into per-year CSV sheets.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pmorrell/setlist-harvester/internal/event"
)

// columns is the fixed output column order.
var columns = []string{
	"year", "date", "url", "venue", "band", "songs", "category",
	"act_type", "show_id", "date_from_title", "date_is_placeholder",
	"setlist", "musicians", "notes",
}

// Exporter writes one CSV file per year into a directory.
type Exporter struct {
	dir    string
	logger *zap.Logger
}

// New creates the output directory if needed.
func New(dir string, logger *zap.Logger) (*Exporter, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("export directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create export dir %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{dir: dir, logger: logger}, nil
}

// Export writes every non-empty year as events_<year>.csv and returns the
// written paths sorted by year.
func (e *Exporter) Export(snapshot map[string][]event.Record) ([]string, error) {
	years := make([]string, 0, len(snapshot))
	for year := range snapshot {
		years = append(years, year)
	}
	sort.Strings(years)

	var paths []string
	for _, year := range years {
		records := snapshot[year]
		if len(records) == 0 {
			continue
		}
		path := filepath.Join(e.dir, fmt.Sprintf("events_%s.csv", year))
		if err := e.writeYear(path, year, records); err != nil {
			return paths, err
		}
		e.logger.Info("year exported", zap.String("year", year), zap.Int("rows", len(records)))
		paths = append(paths, path)
	}
	return paths, nil
}

func (e *Exporter) writeYear(path, year string, records []event.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(row(year, rec)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

func row(year string, rec event.Record) []string {
	return []string{
		year,
		text(rec[event.FieldDate]),
		text(rec[event.FieldURL]),
		text(rec[event.FieldVenue]),
		text(rec[event.FieldBand]),
		text(rec[event.FieldSongs]),
		text(rec[event.FieldCategory]),
		text(rec[event.FieldActType]),
		text(rec[event.FieldShowID]),
		text(rec[event.FieldDateTitle]),
		text(rec[event.FieldPlaceholder]),
		joinList(rec[event.FieldSetlist]),
		joinMusicians(rec[event.FieldMusicians]),
		joinList(rec[event.FieldNotes]),
	}
}

// text renders a scalar cell. Linked cells from the listing crawl keep
// their name; everything else stringifies plainly.
func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any:
		name, _ := val["name"].(string)
		return name
	default:
		return fmt.Sprint(val)
	}
}

func joinList(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, text(item))
		}
		return strings.Join(parts, ", ")
	default:
		return text(v)
	}
}

func joinMusicians(v any) string {
	var parts []string
	switch val := v.(type) {
	case nil:
		return ""
	case []event.Musician:
		for _, m := range val {
			parts = append(parts, musicianText(m.Name, m.Instrument))
		}
	case []any:
		for _, item := range val {
			m, ok := item.(map[string]any)
			if !ok {
				parts = append(parts, text(item))
				continue
			}
			name, _ := m["name"].(string)
			instrument, _ := m["instrument"].(string)
			parts = append(parts, musicianText(name, instrument))
		}
	default:
		return text(v)
	}
	return strings.Join(parts, ", ")
}

func musicianText(name, instrument string) string {
	if instrument == "" {
		return name
	}
	return name + " - " + instrument
}
