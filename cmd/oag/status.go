package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache and scan status",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "human", "Output format (json, human)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	engine, _, _, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Cleanup() //nolint:errcheck // Best effort cleanup

	stats := engine.Stats()

	if statusFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("Cache status for %s\n", engine.Root())
	fmt.Printf("  records:       %d\n", stats.RecordCount)
	fmt.Printf("  dependencies:  %d\n", stats.DependencyCount)
	if stats.CacheAgeMs > 0 {
		fmt.Printf("  cache age:     %s\n", (time.Duration(stats.CacheAgeMs) * time.Millisecond).Round(time.Second))
	} else {
		fmt.Printf("  cache age:     cold\n")
	}
	fmt.Printf("  snapshot size: %d bytes\n", stats.CacheSizeBytes)
	fmt.Printf("  algorithm:     %s\n", stats.FingerprintAlgorithm)
	if stats.CollisionCount > 0 {
		fmt.Printf("  collisions:    %d\n", stats.CollisionCount)
	}
	return nil
}
