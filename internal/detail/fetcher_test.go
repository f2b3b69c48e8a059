package detail_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorrell/setlist-harvester/internal/detail"
)

func TestFetcher_FetchEvent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/events/1":
			_, _ = w.Write([]byte(fullPage))
		case "/events/untitled":
			_, _ = w.Write([]byte(`<html><head></head><body></body></html>`))
		case "/events/slow":
			time.Sleep(2 * time.Second)
			_, _ = w.Write([]byte(fullPage))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	fetcher := detail.NewFetcher(detail.Config{UserAgent: "harvester-test", Timeout: 5 * time.Second})

	t.Run("Success", func(t *testing.T) {
		t.Parallel()
		got, err := fetcher.FetchEvent(context.Background(), srv.URL+"/events/1")
		require.NoError(t, err)
		assert.Equal(t, "Grateful Dead", got.Band)
		assert.Equal(t, "Fillmore West, San Francisco, CA", got.Venue)
		assert.False(t, got.EnrichedAt.IsZero())
		assert.WithinDuration(t, time.Now().UTC(), got.EnrichedAt, time.Minute)
	})

	t.Run("NotFound", func(t *testing.T) {
		t.Parallel()
		_, err := fetcher.FetchEvent(context.Background(), srv.URL+"/events/missing")
		require.Error(t, err)
		var fetchErr *detail.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, srv.URL+"/events/missing", fetchErr.URL)
	})

	t.Run("UnparseablePage", func(t *testing.T) {
		t.Parallel()
		_, err := fetcher.FetchEvent(context.Background(), srv.URL+"/events/untitled")
		require.Error(t, err)
		var fetchErr *detail.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Contains(t, fetchErr.Error(), "unrecognized page shape")
	})

	t.Run("ConnectionRefused", func(t *testing.T) {
		t.Parallel()
		_, err := fetcher.FetchEvent(context.Background(), "http://127.0.0.1:1/events/1")
		require.Error(t, err)
		var fetchErr *detail.FetchError
		assert.ErrorAs(t, err, &fetchErr)
	})

	t.Run("ContextDeadline", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := fetcher.FetchEvent(ctx, srv.URL+"/events/slow")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
