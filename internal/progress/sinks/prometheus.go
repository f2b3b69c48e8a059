package sinks

import (
	"context"

	"github.com/pmorrell/setlist-harvester/internal/metrics"
	"github.com/pmorrell/setlist-harvester/internal/progress"
)

// PrometheusSink forwards task resolutions to the metrics collectors.
type PrometheusSink struct{}

// NewPrometheusSink initializes the collectors and returns the sink.
func NewPrometheusSink() *PrometheusSink {
	metrics.Init()
	return &PrometheusSink{}
}

// Consume records each task resolution in the Prometheus collectors.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageTaskDone:
			metrics.ObserveTask("success", evt.Completed, evt.Dur)
		case progress.StageTaskError:
			metrics.ObserveTask("failure", evt.Completed, evt.Dur)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
