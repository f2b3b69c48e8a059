package event

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Task is one (year, index, url) unit of enrichment work. The task set is
// fixed at pipeline start and maps one-to-one onto dataset slots.
type Task struct {
	Year  string
	Index int
	URL   string
}

// Dataset is the year-keyed, index-ordered collection of records being
// enriched. Slot writes and snapshots are guarded by a single mutex; the
// task-to-slot mapping is a bijection, so writers never contend on a slot.
type Dataset struct {
	mu    sync.RWMutex
	years map[string][]Record
}

// NewDataset wraps raw year-keyed records in a Dataset. The input map is
// not aliased afterwards.
func NewDataset(years map[string][]Record) *Dataset {
	cloned := make(map[string][]Record, len(years))
	for year, records := range years {
		rows := make([]Record, len(records))
		for i, rec := range records {
			rows[i] = rec.Clone()
		}
		cloned[year] = rows
	}
	return &Dataset{years: cloned}
}

// LoadDataset reads and decodes an input file into a fresh Dataset. A
// malformed file is a fatal startup error for the pipeline.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", path, err)
	}
	ds, err := DecodeDataset(data)
	if err != nil {
		return nil, fmt.Errorf("decode input %s: %w", path, err)
	}
	return ds, nil
}

// DecodeDataset decodes the serialized year -> records mapping.
func DecodeDataset(data []byte) (*Dataset, error) {
	var years map[string][]Record
	if err := json.Unmarshal(data, &years); err != nil {
		return nil, fmt.Errorf("unmarshal dataset: %w", err)
	}
	if years == nil {
		years = map[string][]Record{}
	}
	return &Dataset{years: years}, nil
}

// Years returns the dataset's year keys in sorted order.
func (d *Dataset) Years() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	years := make([]string, 0, len(d.years))
	for year := range d.years {
		years = append(years, year)
	}
	sort.Strings(years)
	return years
}

// Records returns a deep copy of one year's ordered records.
func (d *Dataset) Records(year string) []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	records := d.years[year]
	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}

// Get returns a copy of the record at (year, index).
func (d *Dataset) Get(year string, index int) (Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	records := d.years[year]
	if index < 0 || index >= len(records) {
		return nil, false
	}
	return records[index].Clone(), true
}

// Set replaces the record at (year, index). Out-of-range writes are
// rejected so a stale task can never grow a year.
func (d *Dataset) Set(year string, index int, rec Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	records, ok := d.years[year]
	if !ok || index < 0 || index >= len(records) {
		return fmt.Errorf("no slot %s[%d]", year, index)
	}
	records[index] = rec
	return nil
}

// Len reports the total record count across all years.
func (d *Dataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	total := 0
	for _, records := range d.years {
		total += len(records)
	}
	return total
}

// Tasks enumerates the outstanding enrichment work: records that carry a
// URL and have not already been enriched. Order is deterministic (sorted
// years, ascending index).
func (d *Dataset) Tasks() []Task {
	d.mu.RLock()
	defer d.mu.RUnlock()
	years := make([]string, 0, len(d.years))
	for year := range d.years {
		years = append(years, year)
	}
	sort.Strings(years)

	var tasks []Task
	for _, year := range years {
		for i, rec := range d.years[year] {
			if url := rec.URL(); url != "" && !rec.Enriched() {
				tasks = append(tasks, Task{Year: year, Index: i, URL: url})
			}
		}
	}
	return tasks
}

// Snapshot returns a deep copy of the full year -> records mapping,
// consistent with respect to concurrent Set calls.
func (d *Dataset) Snapshot() map[string][]Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string][]Record, len(d.years))
	for year, records := range d.years {
		rows := make([]Record, len(records))
		for i, rec := range records {
			rows[i] = rec.Clone()
		}
		out[year] = rows
	}
	return out
}

// Encode serializes the dataset for persistence.
func (d *Dataset) Encode() ([]byte, error) {
	snapshot := d.Snapshot()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal dataset: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes the dataset to path atomically (temp file + rename), so a
// reader never observes a partial file.
func (d *Dataset) Save(path string) error {
	data, err := d.Encode()
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to a sibling temp file and renames it into
// place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
