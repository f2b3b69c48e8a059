package progress_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorrell/setlist-harvester/internal/progress"
)

// memorySink records consumed events and close calls.
type memorySink struct {
	mu         sync.Mutex
	events     []progress.Event
	consumeErr error
	closed     bool
}

func (s *memorySink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumeErr != nil {
		return s.consumeErr
	}
	s.events = append(s.events, batch...)
	return nil
}

func (s *memorySink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *memorySink) wasClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func validEvent(stage progress.Stage) progress.Event {
	evt := progress.Event{
		RunID: uuid.New(),
		TS:    time.Now().UTC(),
		Stage: stage,
		Total: 10,
	}
	switch stage {
	case progress.StageTaskDone, progress.StageTaskError:
		evt.URL = "http://x/1"
		evt.Completed = 1
	}
	return evt
}

func TestHub_DeliversEventsToAllSinks(t *testing.T) {
	t.Parallel()

	first := &memorySink{}
	second := &memorySink{}
	hub := progress.NewHub(progress.Config{MaxBatchWait: 10 * time.Millisecond}, first, second)

	for i := 0; i < 5; i++ {
		hub.Emit(validEvent(progress.StageTaskDone))
	}

	require.Eventually(t, func() bool {
		return first.len() == 5 && second.len() == 5
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Close(context.Background()))
	assert.True(t, first.wasClosed())
	assert.True(t, second.wasClosed())
	assert.Zero(t, hub.Dropped())
}

func TestHub_CloseDrainsPendingEvents(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	// A long batch wait forces delivery to happen via the close-time drain.
	hub := progress.NewHub(progress.Config{MaxBatchWait: time.Hour}, sink)

	for i := 0; i < 20; i++ {
		hub.Emit(validEvent(progress.StageTaskDone))
	}
	require.NoError(t, hub.Close(context.Background()))

	assert.Equal(t, 20, sink.len())
	assert.True(t, sink.wasClosed())
}

func TestHub_DiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	hub := progress.NewHub(progress.Config{}, sink)

	hub.Emit(progress.Event{Stage: progress.StageTaskDone})
	require.NoError(t, hub.Close(context.Background()))

	assert.Zero(t, sink.len())
	assert.Zero(t, hub.Dropped())
}

func TestHub_EmitAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	hub := progress.NewHub(progress.Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(validEvent(progress.StageRunStart))
	assert.Zero(t, sink.len())
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	hub := progress.NewHub(progress.Config{}, &memorySink{})
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	slow := &blockingSink{release: make(chan struct{})}
	hub := progress.NewHub(progress.Config{
		BufferSize:     1,
		MaxBatchEvents: 1,
		MaxBatchWait:   time.Hour,
		SinkTimeout:    time.Hour,
	}, slow)

	// First event enters the batch goroutine and parks in the sink; the
	// second fills the buffer; everything after that is dropped.
	for i := 0; i < 10; i++ {
		hub.Emit(validEvent(progress.StageTaskDone))
	}

	require.Eventually(t, func() bool {
		return hub.Dropped() > 0
	}, 2*time.Second, 10*time.Millisecond)

	close(slow.release)
	require.NoError(t, hub.Close(context.Background()))
}

func TestHub_SinkErrorDoesNotStopDelivery(t *testing.T) {
	t.Parallel()

	failing := &memorySink{consumeErr: fmt.Errorf("sink down")}
	healthy := &memorySink{}
	hub := progress.NewHub(progress.Config{MaxBatchWait: 10 * time.Millisecond}, failing, healthy)

	hub.Emit(validEvent(progress.StageRunStart))
	require.Eventually(t, func() bool {
		return healthy.len() == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Close(context.Background()))
}

// blockingSink parks in Consume until released.
type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Consume(ctx context.Context, _ []progress.Event) error {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }
