// Package detail fetches and parses per-event detail pages.
package detail

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pmorrell/setlist-harvester/internal/event"
)

// defaultPlaceholder is reported when the page carries no placeholder hint.
const defaultPlaceholder = "Date might be accurate"

// ParseEvent extracts enrichment fields from a detail page. Optional
// sections that are absent simply yield empty fields; only a page with no
// recognizable title is rejected as an unrecognized shape.
func ParseEvent(page []byte) (*event.Enrichment, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return nil, fmt.Errorf("unrecognized page shape: missing title")
	}

	enrichment := &event.Enrichment{DatePlaceholder: defaultPlaceholder}
	enrichment.DateFromTitle, enrichment.Band = splitTitle(title)

	if h4 := doc.Find(`h4[style="display: inline;"]`).First(); h4.Length() > 0 {
		enrichment.Date = strings.TrimSpace(h4.Text())
	}
	if muted := doc.Find("span.text-muted").First(); muted.Length() > 0 {
		if text := strings.TrimSpace(muted.Text()); text != "" {
			enrichment.DatePlaceholder = text
		}
	}

	enrichment.Venue = parseVenue(doc)
	enrichment.Setlist = parseSetlist(doc)
	enrichment.Musicians = parseMusicians(doc)
	enrichment.Notes = parseNotes(doc)

	return enrichment, nil
}

func splitTitle(title string) (date, band string) {
	parts := strings.SplitN(title, " ", 2)
	date = parts[0]
	if len(parts) > 1 {
		band = strings.TrimSpace(parts[1])
	}
	return date, band
}

func parseVenue(doc *goquery.Document) string {
	// The venue heading links to the venue's own page.
	venue := doc.Find(`h4:has(a[href*="/venues"])`).First()
	if venue.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(venue.Text())
}

func parseSetlist(doc *goquery.Document) []string {
	setlist := []string{}
	doc.Find("div#simple-card a").Each(func(_ int, sel *goquery.Selection) {
		if song := strings.TrimSpace(sel.Text()); song != "" {
			setlist = append(setlist, song)
		}
	})
	if len(setlist) > 0 {
		return setlist
	}
	// Longer shows render the setlist as a table instead of the card.
	doc.Find(`table[id^="datatable_"] tr`).Each(func(_ int, row *goquery.Selection) {
		song := row.Find("a").First()
		if song.Length() == 0 {
			return
		}
		if text := strings.TrimSpace(song.Text()); text != "" {
			setlist = append(setlist, text)
		}
	})
	return setlist
}

func parseMusicians(doc *goquery.Document) []event.Musician {
	musicians := []event.Musician{}
	content := doc.Find("div#musicians-content").First()
	if content.Length() == 0 {
		return musicians
	}
	var lines []string
	for _, line := range strings.Split(content.Text(), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	// Lines alternate: performer name, then "- instrument".
	for i := 0; i < len(lines); i += 2 {
		m := event.Musician{Name: lines[i], Instrument: "unknown"}
		if i+1 < len(lines) {
			m.Instrument = strings.Trim(lines[i+1], "- ")
		}
		musicians = append(musicians, m)
	}
	return musicians
}

func parseNotes(doc *goquery.Document) []string {
	notes := []string{}
	doc.Find("div.notes-container li").Each(func(_ int, li *goquery.Selection) {
		if note := strings.TrimSpace(li.Text()); note != "" {
			notes = append(notes, note)
		}
	})
	return notes
}
