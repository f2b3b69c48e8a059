package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmorrell/setlist-harvester/internal/api"
	"github.com/pmorrell/setlist-harvester/internal/checkpoint"
	"github.com/pmorrell/setlist-harvester/internal/detail"
	"github.com/pmorrell/setlist-harvester/internal/enrich"
	"github.com/pmorrell/setlist-harvester/internal/event"
	"github.com/pmorrell/setlist-harvester/internal/progress"
	"github.com/pmorrell/setlist-harvester/internal/progress/sinks"
)

// newEnrichCmd creates the 'enrich' subcommand: the bounded-concurrency
// detail enrichment pipeline with checkpointed resumption.
func newEnrichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Enriches every event from its detail page",
		Long: `Restores the latest checkpoint (or seeds from the input dataset),
fetches and parses each event's detail page under a concurrency cap,
merges the extracted fields into the dataset, checkpoints progress at a
fixed interval, and writes the final enriched dataset atomically.`,
		RunE: runEnrichCommand,
	}
}

func runEnrichCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg, logger := a.cfg, a.logger

	store, err := checkpoint.NewStore(cfg.Checkpoint.Dir, cfg.Checkpoint.Keep, logger)
	if err != nil {
		return fmt.Errorf("init checkpoint store: %w", err)
	}

	dataset, err := resumeOrSeed(store, cfg.InputPath, logger)
	if err != nil {
		return err
	}

	statusSink := sinks.NewStatusSink()
	hub := progress.NewHub(
		progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		sinks.NewPrometheusSink(),
		statusSink,
	)
	defer closeHub(hub, logger)

	if cfg.Server.Enabled {
		server := api.NewServer(statusSink, logger)
		server.Start(cfg.Server.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("status server shutdown failed", zap.Error(err))
			}
		}()
	}

	fetcher := detail.NewFetcher(detail.Config{
		UserAgent: cfg.Listing.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	})
	coordinator := enrich.New(fetcher, store, hub, enrich.Config{
		MaxConcurrent:      cfg.Enrich.MaxConcurrent,
		DelayBeforeRequest: cfg.Enrich.DelayBeforeRequest,
		CheckpointInterval: cfg.Checkpoint.Interval,
	}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runDone := make(chan enrich.Stats, 1)
	go func() {
		runDone <- coordinator.Run(ctx, dataset)
	}()

	select {
	case stats := <-runDone:
		if err := dataset.Save(cfg.OutputPath); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		logger.Info("enrichment finished",
			zap.String("output", cfg.OutputPath),
			zap.Int64("tasks", stats.Total),
			zap.Int64("succeeded", stats.Succeeded),
			zap.Int64("failed", stats.Failed),
		)
		return nil
	case <-ctx.Done():
		// Best-effort checkpoint on stop; in-flight fetches are abandoned.
		logger.Warn("stop requested, writing final checkpoint")
		coordinator.Checkpoint(dataset)
		return fmt.Errorf("enrichment interrupted: %w", ctx.Err())
	}
}

// resumeOrSeed returns the latest checkpoint when one exists, otherwise
// the raw input dataset.
func resumeOrSeed(store *checkpoint.Store, inputPath string, logger *zap.Logger) (*event.Dataset, error) {
	dataset, err := store.Restore()
	if err == nil {
		logger.Info("resuming from checkpoint", zap.Int("pending", len(dataset.Tasks())))
		return dataset, nil
	}
	if !errors.Is(err, checkpoint.ErrNoCheckpoint) {
		return nil, fmt.Errorf("restore checkpoint: %w", err)
	}
	dataset, err = event.LoadDataset(inputPath)
	if err != nil {
		return nil, err
	}
	logger.Info("seeded from input",
		zap.String("path", inputPath),
		zap.Int("pending", len(dataset.Tasks())),
	)
	return dataset, nil
}

func closeHub(hub *progress.Hub, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hub.Close(ctx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
}
