package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"oag/internal/config"
	"oag/internal/logging"
	"oag/internal/scan"
	"oag/internal/version"
)

var (
	rootFlag      string
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "oag",
	Short: "oag - OpenAPI generator for web-framework sources",
	Long: `oag statically derives OpenAPI documentation from web-framework source
files. It keeps an incremental cache of per-file analyses so that repeated
scans only re-analyze what actually changed.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("oag version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&rootFlag, "root", "r", ".",
		"Project root directory")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "",
		"Log format: human, json (default from config)")
}

// projectRoot resolves the --root flag to an absolute path.
func projectRoot() (string, error) {
	abs, err := filepath.Abs(rootFlag)
	if err != nil {
		return "", fmt.Errorf("invalid project root %q: %w", rootFlag, err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return "", fmt.Errorf("project root %q is not a directory", abs)
	}
	return abs, nil
}

// setup loads the project config and builds the logger. CLI flags override
// config values.
func setup() (string, *config.Config, *logging.Logger, error) {
	root, err := projectRoot()
	if err != nil {
		return "", nil, nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	format := cfg.Logging.Format
	if logFormatFlag != "" {
		format = logFormatFlag
	}

	logger := logging.NewLogger(logging.Config{
		Format: logging.ParseFormat(format),
		Level:  logging.ParseLevel(level),
	})

	return root, cfg, logger, nil
}

// newEngine builds and initializes a scan engine for the project.
func newEngine() (*scan.Engine, *config.Config, *logging.Logger, error) {
	root, cfg, logger, err := setup()
	if err != nil {
		return nil, nil, nil, err
	}

	engine, err := scan.NewEngine(root, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := engine.Initialize(); err != nil {
		return nil, nil, nil, err
	}
	return engine, cfg, logger, nil
}
