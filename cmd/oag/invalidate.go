package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Discard the analysis cache",
	Long: `Invalidate deletes the cache snapshot and clears the dependency graph.
The next scan starts cold and re-analyzes every file.`,
	RunE: runInvalidate,
}

func init() {
	rootCmd.AddCommand(invalidateCmd)
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	engine, _, _, err := newEngine()
	if err != nil {
		return err
	}

	if err := engine.InvalidateCache(); err != nil {
		return err
	}
	if engine.History() != nil {
		engine.History().Close() //nolint:errcheck // Best effort cleanup
	}

	fmt.Println("Cache invalidated")
	return nil
}
