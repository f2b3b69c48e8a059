package detail

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/pmorrell/setlist-harvester/internal/event"
)

// FetchError wraps any network, HTTP, or parse failure for a single event
// page. The coordinator logs it and moves on.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config controls fetcher behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher retrieves one detail page per call using a Colly collector and
// hands the body to the parser.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// NewFetcher builds a Fetcher.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// FetchEvent performs exactly one outbound request for url and parses the
// response into an Enrichment. Every failure mode collapses into a
// *FetchError carrying the URL and cause.
func (f *Fetcher) FetchEvent(ctx context.Context, url string) (*event.Enrichment, error) {
	body, status, err := f.fetch(ctx, url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("unexpected status %d", status)}
	}
	enrichment, err := ParseEvent(body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	enrichment.EnrichedAt = time.Now().UTC()
	return enrichment, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, int, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
		status = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			if status != 0 {
				return nil, status, fmt.Errorf("status %d: %w", status, err)
			}
			return nil, 0, err
		}
		if fetchErr != nil {
			return nil, status, fetchErr
		}
		if status == 0 {
			status = http.StatusOK
		}
		return body, status, nil
	}
}
