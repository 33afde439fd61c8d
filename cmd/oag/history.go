package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent scan cycles",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of cycles to show")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "human", "Output format (json, human)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	engine, _, _, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Cleanup() //nolint:errcheck // Best effort cleanup

	db := engine.History()
	if db == nil {
		return fmt.Errorf("scan history is disabled (set history.enabled in .oag/config.json)")
	}

	cycles, err := db.RecentCycles(historyLimit)
	if err != nil {
		return err
	}

	if historyFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cycles)
	}

	if len(cycles) == 0 {
		fmt.Println("No scan cycles recorded yet")
		return nil
	}

	fmt.Printf("%-36s  %-11s  %6s  %6s  %6s  %8s  %s\n",
		"CYCLE", "TRIGGER", "SEEN", "HITS", "NEW", "TIME", "AT")
	for _, c := range cycles {
		fmt.Printf("%-36s  %-11s  %6d  %6d  %6d  %8s  %s\n",
			c.CycleID, c.Trigger, c.FilesSeen, c.CacheHits, c.Analyzed,
			c.Duration.Round(time.Millisecond),
			c.RecordedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
