package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/pmorrell/setlist-harvester/internal/progress"
)

// Status is a point-in-time view of the current run, served by the status
// API. Counts are eventually consistent with the pipeline.
type Status struct {
	RunID     string    `json:"run_id"`
	Running   bool      `json:"running"`
	Completed int64     `json:"completed"`
	Succeeded int64     `json:"succeeded"`
	Failed    int64     `json:"failed"`
	Total     int64     `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusSink keeps an in-memory progress summary for external observers.
// Out-of-order batches cannot regress the completed count.
type StatusSink struct {
	mu     sync.RWMutex
	status Status
}

// NewStatusSink returns an empty StatusSink.
func NewStatusSink() *StatusSink {
	return &StatusSink{}
}

// Consume folds the batch into the summary.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.status = Status{
				RunID:     evt.RunID.String(),
				Running:   true,
				Total:     evt.Total,
				UpdatedAt: evt.TS,
			}
		case progress.StageTaskDone:
			s.status.Succeeded++
			s.applyCounts(evt)
		case progress.StageTaskError:
			s.status.Failed++
			s.applyCounts(evt)
		case progress.StageRunDone:
			s.status.Running = false
			s.applyCounts(evt)
		}
	}
	return nil
}

func (s *StatusSink) applyCounts(evt progress.Event) {
	// Completions arrive out of order; only move forward.
	if evt.Completed > s.status.Completed {
		s.status.Completed = evt.Completed
	}
	if evt.Total > 0 {
		s.status.Total = evt.Total
	}
	if evt.TS.After(s.status.UpdatedAt) {
		s.status.UpdatedAt = evt.TS
	}
}

// Snapshot returns a copy of the current summary.
func (s *StatusSink) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Close implements the Sink interface; it performs no action.
func (s *StatusSink) Close(context.Context) error {
	return nil
}
