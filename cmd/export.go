package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmorrell/setlist-harvester/internal/event"
	"github.com/pmorrell/setlist-harvester/internal/export"
)

// newExportCmd creates the 'export' subcommand: the one-shot tabular
// flattening of the enriched dataset.
func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Exports the enriched dataset as per-year CSV sheets",
		RunE:  runExportCommand,
	}
}

func runExportCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	dataset, err := event.LoadDataset(a.cfg.OutputPath)
	if err != nil {
		return err
	}

	exporter, err := export.New(a.cfg.Export.Dir, a.logger)
	if err != nil {
		return fmt.Errorf("init exporter: %w", err)
	}
	paths, err := exporter.Export(dataset.Snapshot())
	if err != nil {
		return fmt.Errorf("export dataset: %w", err)
	}

	a.logger.Info("export finished",
		zap.String("dir", a.cfg.Export.Dir),
		zap.Int("sheets", len(paths)),
	)
	return nil
}
