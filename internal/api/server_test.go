package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pmorrell/setlist-harvester/internal/api"
	"github.com/pmorrell/setlist-harvester/internal/progress"
	"github.com/pmorrell/setlist-harvester/internal/progress/sinks"
)

func newTestServer(t *testing.T, status *sinks.StatusSink) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(api.NewServer(status, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getBody(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, sinks.NewStatusSink())
	code, body := getBody(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestServer_Progress(t *testing.T) {
	t.Parallel()

	status := sinks.NewStatusSink()
	runID := uuid.New()
	now := time.Now().UTC()
	require.NoError(t, status.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart, Total: 9},
		{RunID: runID, TS: now, Stage: progress.StageTaskDone, URL: "http://x/1", Completed: 1, Total: 9},
	}))

	srv := newTestServer(t, status)
	code, body := getBody(t, srv.URL+"/progress")
	require.Equal(t, http.StatusOK, code)

	var got sinks.Status
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, runID.String(), got.RunID)
	assert.True(t, got.Running)
	assert.Equal(t, int64(1), got.Completed)
	assert.Equal(t, int64(9), got.Total)
}

func TestServer_ProgressWithoutSink(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	code, body := getBody(t, srv.URL+"/progress")
	require.Equal(t, http.StatusOK, code)

	var got sinks.Status
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Empty(t, got.RunID)
	assert.False(t, got.Running)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, sinks.NewStatusSink())
	code, body := getBody(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body)
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	t.Parallel()

	srv := api.NewServer(sinks.NewStatusSink(), zap.NewNop())
	assert.NoError(t, srv.Shutdown(context.Background()))
}
