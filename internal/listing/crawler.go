// Package listing crawls the paginated event listing site, one page per
// year, and produces the raw year-keyed dataset.
package listing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/pmorrell/setlist-harvester/internal/event"
)

// Config controls crawler behavior.
type Config struct {
	BaseURL   string
	Delay     time.Duration
	UserAgent string
	Timeout   time.Duration
}

// Crawler scrapes the year index and the per-year events tables.
type Crawler struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// New builds a Crawler.
func New(cfg Config, logger *zap.Logger) *Crawler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	return &Crawler{cfg: cfg, logger: logger, baseCollector: c}
}

// Years fetches the listing index and returns the values of the year
// selector, in page order.
func (c *Crawler) Years(ctx context.Context) ([]string, error) {
	var years []string
	collector := c.newCollector()
	collector.OnHTML("select#year-select option", func(e *colly.HTMLElement) {
		if value := e.Attr("value"); value != "" {
			years = append(years, value)
		}
	})
	if err := c.visit(ctx, collector, c.cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("fetch year index: %w", err)
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("no year selector found at %s", c.cfg.BaseURL)
	}
	return years, nil
}

// EventsForYear fetches one year's listing page and returns its event rows
// in table order.
func (c *Crawler) EventsForYear(ctx context.Context, year string) ([]event.Record, error) {
	records := []event.Record{}
	collector := c.newCollector()
	collector.OnHTML("table#datatable_events tbody tr", func(e *colly.HTMLElement) {
		if rec := parseRow(e); rec != nil {
			records = append(records, rec)
		}
	})
	pageURL := fmt.Sprintf("%s?year=%s", c.cfg.BaseURL, year)
	if err := c.visit(ctx, collector, pageURL); err != nil {
		return nil, fmt.Errorf("fetch events for %s: %w", year, err)
	}
	return records, nil
}

// Crawl walks every year and assembles the raw dataset, pausing between
// listing pages to avoid overwhelming the server.
func (c *Crawler) Crawl(ctx context.Context) (*event.Dataset, error) {
	years, err := c.Years(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Info("listing crawl starting", zap.Strings("years", years))

	all := make(map[string][]event.Record, len(years))
	for i, year := range years {
		if i > 0 {
			c.pause(ctx)
		}
		records, err := c.EventsForYear(ctx, year)
		if err != nil {
			return nil, err
		}
		c.logger.Info("year crawled", zap.String("year", year), zap.Int("events", len(records)))
		all[year] = records
	}
	return event.NewDataset(all), nil
}

func (c *Crawler) newCollector() *colly.Collector {
	collector := c.baseCollector.Clone()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.SetRequestTimeout(c.cfg.Timeout)
	return collector
}

func (c *Crawler) visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("listing fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}

func (c *Crawler) pause(ctx context.Context) {
	if c.cfg.Delay <= 0 {
		return
	}
	timer := time.NewTimer(c.cfg.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// parseRow converts one events-table row into a Record. Rows without the
// full cell set (header padding, ad rows) are skipped.
func parseRow(e *colly.HTMLElement) event.Record {
	cells := e.DOM.Find("td")
	if cells.Length() < 7 {
		return nil
	}
	dateCell := cells.Eq(0)
	rec := event.Record{
		event.FieldDate:     strings.TrimSpace(dateCell.Find("span").First().Text()),
		event.FieldURL:      absoluteHref(e, dateCell),
		event.FieldVenue:    linkedCell(e, cells.Eq(1)),
		event.FieldBand:     linkedCell(e, cells.Eq(2)),
		event.FieldSongs:    strings.TrimSpace(cells.Eq(3).Text()),
		event.FieldCategory: strings.TrimSpace(cells.Eq(4).Text()),
		event.FieldActType:  strings.TrimSpace(cells.Eq(5).Text()),
		event.FieldShowID:   strings.TrimSpace(cells.Eq(6).Text()),
	}
	return rec
}

// linkedCell captures cells holding a name plus an optional link, the
// shape used for venues and bands.
func linkedCell(e *colly.HTMLElement, cell *goquery.Selection) map[string]any {
	return map[string]any{
		"name": strings.TrimSpace(cell.Text()),
		"url":  absoluteHref(e, cell),
	}
}

func absoluteHref(e *colly.HTMLElement, cell *goquery.Selection) string {
	href, ok := cell.Find("a").First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	return e.Request.AbsoluteURL(href)
}
