package sinks_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorrell/setlist-harvester/internal/progress"
	"github.com/pmorrell/setlist-harvester/internal/progress/sinks"
)

func TestStatusSink_FullRun(t *testing.T) {
	t.Parallel()

	sink := sinks.NewStatusSink()
	runID := uuid.New()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: base, Stage: progress.StageRunStart, Total: 3},
	}))
	status := sink.Snapshot()
	assert.Equal(t, runID.String(), status.RunID)
	assert.True(t, status.Running)
	assert.Equal(t, int64(3), status.Total)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: base.Add(time.Second), Stage: progress.StageTaskDone, URL: "http://x/1", Completed: 1, Total: 3},
		{RunID: runID, TS: base.Add(2 * time.Second), Stage: progress.StageTaskError, URL: "http://x/2", Completed: 2, Total: 3},
		{RunID: runID, TS: base.Add(3 * time.Second), Stage: progress.StageTaskDone, URL: "http://x/3", Completed: 3, Total: 3},
		{RunID: runID, TS: base.Add(4 * time.Second), Stage: progress.StageRunDone, Completed: 3, Total: 3},
	}))

	status = sink.Snapshot()
	assert.False(t, status.Running)
	assert.Equal(t, int64(3), status.Completed)
	assert.Equal(t, int64(2), status.Succeeded)
	assert.Equal(t, int64(1), status.Failed)
	assert.Equal(t, base.Add(4*time.Second), status.UpdatedAt)
}

func TestStatusSink_OutOfOrderCompletionsNeverRegress(t *testing.T) {
	t.Parallel()

	sink := sinks.NewStatusSink()
	runID := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart, Total: 5},
		{RunID: runID, TS: now, Stage: progress.StageTaskDone, URL: "http://x/3", Completed: 3, Total: 5},
		{RunID: runID, TS: now, Stage: progress.StageTaskDone, URL: "http://x/1", Completed: 1, Total: 5},
	}))

	status := sink.Snapshot()
	assert.Equal(t, int64(3), status.Completed)
	assert.Equal(t, int64(2), status.Succeeded)
}

func TestStatusSink_RunStartResetsCounters(t *testing.T) {
	t.Parallel()

	sink := sinks.NewStatusSink()
	first := uuid.New()
	second := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: first, TS: now, Stage: progress.StageRunStart, Total: 2},
		{RunID: first, TS: now, Stage: progress.StageTaskDone, URL: "http://x/1", Completed: 1, Total: 2},
		{RunID: second, TS: now.Add(time.Minute), Stage: progress.StageRunStart, Total: 7},
	}))

	status := sink.Snapshot()
	assert.Equal(t, second.String(), status.RunID)
	assert.Zero(t, status.Completed)
	assert.Zero(t, status.Succeeded)
	assert.Equal(t, int64(7), status.Total)
}

func TestStatusSink_Close(t *testing.T) {
	t.Parallel()
	require.NoError(t, sinks.NewStatusSink().Close(context.Background()))
}
