package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"oag/internal/scan"
)

var scanFormat string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the project and update the analysis cache",
	Long: `Scan walks the project tree, fingerprints every analyzable source file,
re-analyzes the files that changed, and persists the updated cache snapshot.
Unchanged files are served from the cache without re-analysis.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "human", "Output format (json, human)")
	rootCmd.AddCommand(scanCmd)
}

// ScanResult is the scan command's output payload.
type ScanResult struct {
	CycleID    string    `json:"cycleId"`
	FilesSeen  int       `json:"filesSeen"`
	CacheHits  int       `json:"cacheHits"`
	Analyzed   int       `json:"analyzed"`
	Failed     int       `json:"failed"`
	Removed    int       `json:"removed"`
	Endpoints  int       `json:"endpoints"`
	DurationMs int64     `json:"durationMs"`
	ScannedAt  time.Time `json:"scannedAt"`
}

func runScan(cmd *cobra.Command, args []string) error {
	engine, _, _, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Cleanup() //nolint:errcheck // Best effort cleanup

	_, stats, err := engine.FullScan(context.Background())
	if err != nil {
		return err
	}

	endpoints := 0
	for _, analysis := range engine.AllResults() {
		if analysis != nil {
			endpoints += len(analysis.Endpoints)
		}
	}

	result := ScanResult{
		CycleID:    stats.CycleID,
		FilesSeen:  stats.FilesSeen,
		CacheHits:  stats.CacheHits,
		Analyzed:   stats.Analyzed,
		Failed:     stats.Failed,
		Removed:    stats.Removed,
		Endpoints:  endpoints,
		DurationMs: stats.Duration.Milliseconds(),
		ScannedAt:  time.Now().UTC(),
	}

	if scanFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printScanSummary(result, stats)
	return nil
}

func printScanSummary(result ScanResult, stats *scan.CycleStats) {
	fmt.Printf("Scan complete in %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Printf("  files seen:  %d\n", result.FilesSeen)
	fmt.Printf("  cache hits:  %d\n", result.CacheHits)
	fmt.Printf("  analyzed:    %d\n", result.Analyzed)
	if result.Failed > 0 {
		fmt.Printf("  failed:      %d\n", result.Failed)
	}
	if result.Removed > 0 {
		fmt.Printf("  removed:     %d\n", result.Removed)
	}
	fmt.Printf("  endpoints:   %d\n", result.Endpoints)
}
