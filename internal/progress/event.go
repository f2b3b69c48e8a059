// Package progress defines the advisory event stream emitted by the
// enrichment pipeline and the hub that fans it out to sinks.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart  Stage = "RUN_START"
	StageRunDone   Stage = "RUN_DONE"
	StageTaskDone  Stage = "TASK_DONE"
	StageTaskError Stage = "TASK_ERROR"
)

// Event captures a single milestone of enrichment progress. Counts are
// best-effort and eventually consistent; sinks must tolerate out-of-order
// delivery across concurrent completions.
type Event struct {
	// RunID identifies one pipeline run.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Year scopes task events to their dataset bucket.
	Year string
	// URL is the task's detail-page URL.
	URL string
	// Completed is the resolved task count at emit time.
	Completed int64
	// Total is the fixed task-set size for the run.
	Total int64
	// Dur captures fetch latency for task events.
	Dur time.Duration
	// Note carries low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageTaskDone, StageTaskError:
		if e.URL == "" {
			return errors.New("task events require a url")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
