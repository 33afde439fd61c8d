package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"oag/internal/scan"
	"oag/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the project and keep the cache up to date",
	Long: `Watch runs an initial full scan, then polls the project tree for changes
and incrementally re-analyzes affected files. Rapid successive changes are
debounced into one scan cycle. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	engine, cfg, logger, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Cleanup() //nolint:errcheck // Best effort cleanup

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, _, err := engine.FullScan(ctx); err != nil {
		return err
	}

	w := watcher.New(engine.Root(), cfg, logger, func(changes []scan.Change) {
		if _, _, err := engine.ProcessChanges(ctx, changes); err != nil {
			logger.Warn("incremental cycle aborted", map[string]interface{}{
				"error": err.Error(),
			})
		}
	})
	if err := w.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down", nil)
	cancel()
	w.Stop()
	return nil
}
