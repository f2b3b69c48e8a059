// Package enrich drives the bounded-concurrency detail enrichment pipeline.
package enrich

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pmorrell/setlist-harvester/internal/event"
	"github.com/pmorrell/setlist-harvester/internal/metrics"
	"github.com/pmorrell/setlist-harvester/internal/progress"
)

// Fetcher retrieves and parses one detail page.
type Fetcher interface {
	FetchEvent(ctx context.Context, url string) (*event.Enrichment, error)
}

// Checkpointer persists working-dataset snapshots mid-run.
type Checkpointer interface {
	Save(snapshot map[string][]event.Record) (string, error)
}

// Config controls Coordinator behavior.
type Config struct {
	// MaxConcurrent bounds simultaneous in-flight fetches.
	MaxConcurrent int
	// DelayBeforeRequest is applied per task immediately before its fetch.
	DelayBeforeRequest time.Duration
	// CheckpointInterval is the number of resolved tasks between
	// checkpoint triggers.
	CheckpointInterval int
}

// Stats summarizes one pipeline run.
type Stats struct {
	Total     int64
	Succeeded int64
	Failed    int64
}

// Coordinator runs every pending task of a dataset to completion under an
// admission gate, merging results into the dataset and checkpointing at a
// fixed completed-task interval. Task failures are logged and absorbed;
// the run itself never aborts mid-flight.
type Coordinator struct {
	fetcher     Fetcher
	checkpoints Checkpointer
	emitter     progress.Emitter
	cfg         Config
	logger      *zap.Logger
	runID       uuid.UUID
}

// New constructs a Coordinator.
func New(
	fetcher Fetcher,
	checkpoints Checkpointer,
	emitter progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Coordinator{
		fetcher:     fetcher,
		checkpoints: checkpoints,
		emitter:     emitter,
		cfg:         cfg,
		logger:      logger,
		runID:       uuid.New(),
	}
}

// RunID identifies this coordinator's run in progress events and logs.
func (c *Coordinator) RunID() uuid.UUID {
	return c.runID
}

// Run enumerates the dataset's pending tasks and drives all of them to
// resolution. It returns only after every task has resolved, success or
// failure.
func (c *Coordinator) Run(ctx context.Context, dataset *event.Dataset) Stats {
	tasks := dataset.Tasks()
	total := int64(len(tasks))
	c.logger.Info("enrichment run starting",
		zap.String("run_id", c.runID.String()),
		zap.Int64("tasks", total),
		zap.Int("max_concurrent", c.cfg.MaxConcurrent),
		zap.Int("checkpoint_interval", c.cfg.CheckpointInterval),
	)
	c.emit(progress.Event{
		RunID: c.runID,
		TS:    time.Now().UTC(),
		Stage: progress.StageRunStart,
		Total: total,
	})

	gate := make(chan struct{}, c.cfg.MaxConcurrent)
	var (
		wg        sync.WaitGroup
		completed atomic.Int64
		succeeded atomic.Int64
		failed    atomic.Int64
	)
	for _, task := range tasks {
		wg.Add(1)
		go func(t event.Task) {
			defer wg.Done()
			gate <- struct{}{}
			defer func() { <-gate }()
			if c.process(ctx, dataset, t, &completed, total) {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
		}(task)
	}
	wg.Wait()

	stats := Stats{
		Total:     total,
		Succeeded: succeeded.Load(),
		Failed:    failed.Load(),
	}
	c.emit(progress.Event{
		RunID:     c.runID,
		TS:        time.Now().UTC(),
		Stage:     progress.StageRunDone,
		Completed: completed.Load(),
		Total:     total,
	})
	c.logger.Info("enrichment run finished",
		zap.String("run_id", c.runID.String()),
		zap.Int64("succeeded", stats.Succeeded),
		zap.Int64("failed", stats.Failed),
	)
	return stats
}

// process resolves one task and reports whether it succeeded. The slot
// write happens before the task counts as complete, and therefore before
// any checkpoint triggered by a later-numbered completion.
func (c *Coordinator) process(
	ctx context.Context,
	dataset *event.Dataset,
	t event.Task,
	completed *atomic.Int64,
	total int64,
) bool {
	c.pause(ctx, c.cfg.DelayBeforeRequest)

	metrics.IncInflightFetches()
	start := time.Now()
	enrichment, err := c.fetcher.FetchEvent(ctx, t.URL)
	dur := time.Since(start)
	metrics.DecInflightFetches()

	ok := err == nil
	if ok {
		ok = c.mergeResult(dataset, t, enrichment)
	} else {
		c.logger.Warn("task fetch failed",
			zap.String("run_id", c.runID.String()),
			zap.String("year", t.Year),
			zap.Int("index", t.Index),
			zap.String("url", t.URL),
			zap.Error(err),
		)
	}

	// Failures count toward the interval too, so a reliably-failing URL
	// never stalls checkpointing.
	n := completed.Add(1)

	evt := progress.Event{
		RunID:     c.runID,
		TS:        time.Now().UTC(),
		Stage:     progress.StageTaskDone,
		Year:      t.Year,
		URL:       t.URL,
		Completed: n,
		Total:     total,
		Dur:       dur,
	}
	if !ok {
		evt.Stage = progress.StageTaskError
		if err != nil {
			evt.Note = err.Error()
		}
	}
	c.emit(evt)

	if n%int64(c.cfg.CheckpointInterval) == 0 {
		c.checkpoint(dataset, n)
	}
	return ok
}

func (c *Coordinator) mergeResult(dataset *event.Dataset, t event.Task, enrichment *event.Enrichment) bool {
	original, found := dataset.Get(t.Year, t.Index)
	if !found {
		c.logger.Error("task slot vanished",
			zap.String("year", t.Year),
			zap.Int("index", t.Index),
		)
		return false
	}
	if err := dataset.Set(t.Year, t.Index, event.Merge(original, enrichment)); err != nil {
		c.logger.Error("slot write failed",
			zap.String("year", t.Year),
			zap.Int("index", t.Index),
			zap.Error(err),
		)
		return false
	}
	return true
}

// checkpoint snapshots the dataset and hands it to the store. Persistence
// failures are logged and absorbed; data-loss risk on crash is accepted.
func (c *Coordinator) checkpoint(dataset *event.Dataset, completed int64) {
	if c.checkpoints == nil {
		return
	}
	path, err := c.checkpoints.Save(dataset.Snapshot())
	if err != nil {
		metrics.ObserveCheckpoint("failure")
		c.logger.Warn("checkpoint save failed",
			zap.String("run_id", c.runID.String()),
			zap.Int64("completed", completed),
			zap.Error(err),
		)
		return
	}
	metrics.ObserveCheckpoint("success")
	c.logger.Info("checkpoint written",
		zap.String("run_id", c.runID.String()),
		zap.Int64("completed", completed),
		zap.String("path", path),
	)
}

// Checkpoint forces an out-of-band snapshot, used for best-effort saves on
// shutdown signals.
func (c *Coordinator) Checkpoint(dataset *event.Dataset) {
	c.checkpoint(dataset, -1)
}

func (c *Coordinator) emit(evt progress.Event) {
	if c.emitter == nil {
		return
	}
	c.emitter.Emit(evt)
}

func (c *Coordinator) pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
