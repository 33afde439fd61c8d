package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"oag/internal/config"
	"oag/internal/scan"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default .oag/config.json in the project",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	configPath := filepath.Join(root, scan.StateDirName, "config.json")
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(root); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", configPath)
	return nil
}
