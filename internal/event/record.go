// Package event defines the record model shared across the harvest pipeline.
package event

import "time"

// Record is one event row as produced by the listing crawl, plus any
// enrichment fields merged in later. Unknown keys pass through untouched.
type Record map[string]any

// Field names shared between the listing crawl and the detail enrichment.
const (
	FieldDate        = "date"
	FieldURL         = "url"
	FieldVenue       = "venue"
	FieldBand        = "band"
	FieldSongs       = "songs"
	FieldCategory    = "category"
	FieldActType     = "act_type"
	FieldShowID      = "show_id"
	FieldDateTitle   = "date_from_title"
	FieldPlaceholder = "date_is_placeholder"
	FieldSetlist     = "setlist"
	FieldMusicians   = "musicians"
	FieldNotes       = "notes"
	FieldEnrichedAt  = "enriched_at"
)

// URL returns the record's detail-page URL, or "" if absent.
func (r Record) URL() string {
	u, _ := r[FieldURL].(string)
	return u
}

// Enriched reports whether the record already carries detail-page fields.
func (r Record) Enriched() bool {
	_, ok := r[FieldEnrichedAt]
	return ok
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Musician pairs a performer with the instrument credited on the page.
type Musician struct {
	Name       string `json:"name"`
	Instrument string `json:"instrument"`
}

// Enrichment holds the fields obtainable only from an event's detail page.
// It is immutable once the fetcher returns it.
type Enrichment struct {
	DateFromTitle   string
	Date            string
	DatePlaceholder string
	Band            string
	Venue           string
	Setlist         []string
	Musicians       []Musician
	Notes           []string
	EnrichedAt      time.Time
}

// Fields returns the overlay map applied during a merge. Absent optional
// fields produce no key, so they never clobber listing values.
func (e *Enrichment) Fields() map[string]any {
	out := map[string]any{}
	if e.DateFromTitle != "" {
		out[FieldDateTitle] = e.DateFromTitle
	}
	if e.Date != "" {
		out[FieldDate] = e.Date
	}
	if e.DatePlaceholder != "" {
		out[FieldPlaceholder] = e.DatePlaceholder
	}
	if e.Band != "" {
		out[FieldBand] = e.Band
	}
	if e.Venue != "" {
		out[FieldVenue] = e.Venue
	}
	if e.Setlist != nil {
		out[FieldSetlist] = append([]string(nil), e.Setlist...)
	}
	if e.Musicians != nil {
		out[FieldMusicians] = append([]Musician(nil), e.Musicians...)
	}
	if e.Notes != nil {
		out[FieldNotes] = append([]string(nil), e.Notes...)
	}
	if !e.EnrichedAt.IsZero() {
		out[FieldEnrichedAt] = e.EnrichedAt.UTC().Format(time.RFC3339)
	}
	return out
}

// Merge combines an original record with its enrichment result. A nil
// enrichment returns the original unchanged; otherwise every enrichment
// field overwrites the corresponding original field and everything else is
// preserved. Merge never mutates its arguments and is idempotent.
func Merge(original Record, enrichment *Enrichment) Record {
	if enrichment == nil {
		return original
	}
	merged := original.Clone()
	if merged == nil {
		merged = Record{}
	}
	for k, v := range enrichment.Fields() {
		merged[k] = v
	}
	return merged
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Record:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []Musician:
		return append([]Musician(nil), val...)
	default:
		// Primitives and immutable values.
		return v
	}
}
