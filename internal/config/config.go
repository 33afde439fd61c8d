// Package config loads oag configuration from .oag/config.json.
package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/viper"
)

// Config represents the complete oag configuration (v2 schema)
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Scan    ScanConfig    `json:"scan" mapstructure:"scan"`
	Cache   CacheConfig   `json:"cache" mapstructure:"cache"`
	Watch   WatchConfig   `json:"watch" mapstructure:"watch"`
	History HistoryConfig `json:"history" mapstructure:"history"`
	Output  OutputConfig  `json:"output" mapstructure:"output"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ScanConfig controls which files are analyzed and how they are fingerprinted
type ScanConfig struct {
	// Algorithm selects the fingerprint strength: "fast" (xxhash) or "strong" (sha256)
	Algorithm string `json:"algorithm" mapstructure:"algorithm"`
	// Extensions lists source file extensions considered analyzable
	Extensions []string `json:"extensions" mapstructure:"extensions"`
	// Excludes lists directory names and glob patterns to skip
	Excludes []string `json:"excludes" mapstructure:"excludes"`
	// BaseTypeSuffixes classifies shared/base type files whose dependents
	// must be re-validated on any change (e.g. "*.dto.ts")
	BaseTypeSuffixes []string `json:"baseTypeSuffixes" mapstructure:"baseTypeSuffixes"`
}

// CacheConfig controls the persisted cache snapshot
type CacheConfig struct {
	TTLSeconds int  `json:"ttlSeconds" mapstructure:"ttlSeconds"`
	Compress   bool `json:"compress" mapstructure:"compress"`
}

// WatchConfig controls the file watch service
type WatchConfig struct {
	DebounceMs     int `json:"debounceMs" mapstructure:"debounceMs"`
	PollIntervalMs int `json:"pollIntervalMs" mapstructure:"pollIntervalMs"`
}

// HistoryConfig controls the scan-history database
type HistoryConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// OutputConfig controls generated OpenAPI documents
type OutputConfig struct {
	Title       string `json:"title" mapstructure:"title"`
	APIVersion  string `json:"apiVersion" mapstructure:"apiVersion"`
	Description string `json:"description" mapstructure:"description"`
	ServerURL   string `json:"serverUrl" mapstructure:"serverUrl"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// CurrentVersion is the supported config schema version
const CurrentVersion = 2

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Scan: ScanConfig{
			Algorithm:  "fast",
			Extensions: []string{".ts", ".tsx", ".js"},
			Excludes:   []string{"node_modules", "dist", "build", "coverage", ".git", ".oag"},
			BaseTypeSuffixes: []string{
				".dto.ts", ".model.ts", ".entity.ts", ".interface.ts", ".type.ts",
			},
		},
		Cache: CacheConfig{
			TTLSeconds: 7 * 24 * 3600,
			Compress:   false,
		},
		Watch: WatchConfig{
			DebounceMs:     300,
			PollIntervalMs: 1000,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Output: OutputConfig{
			Title:      "API",
			APIVersion: "1.0.0",
			ServerURL:  "http://localhost:3000",
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Load loads configuration from <projectRoot>/.oag/config.json.
// A missing config file yields the defaults.
func Load(projectRoot string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("version", defaults.Version)
	v.SetDefault("scan.algorithm", defaults.Scan.Algorithm)
	v.SetDefault("scan.extensions", defaults.Scan.Extensions)
	v.SetDefault("scan.excludes", defaults.Scan.Excludes)
	v.SetDefault("scan.baseTypeSuffixes", defaults.Scan.BaseTypeSuffixes)
	v.SetDefault("cache.ttlSeconds", defaults.Cache.TTLSeconds)
	v.SetDefault("cache.compress", defaults.Cache.Compress)
	v.SetDefault("watch.debounceMs", defaults.Watch.DebounceMs)
	v.SetDefault("watch.pollIntervalMs", defaults.Watch.PollIntervalMs)
	v.SetDefault("history.enabled", defaults.History.Enabled)
	v.SetDefault("output.title", defaults.Output.Title)
	v.SetDefault("output.apiVersion", defaults.Output.APIVersion)
	v.SetDefault("output.serverUrl", defaults.Output.ServerURL)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.level", defaults.Logging.Level)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(projectRoot, ".oag"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to <projectRoot>/.oag/config.json
func (c *Config) Save(projectRoot string) error {
	dir := filepath.Join(projectRoot, ".oag")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}
	if c.Scan.Algorithm != "fast" && c.Scan.Algorithm != "strong" {
		return &ConfigError{Field: "scan.algorithm", Message: "must be \"fast\" or \"strong\""}
	}
	if c.Watch.DebounceMs < 0 {
		return &ConfigError{Field: "watch.debounceMs", Message: "must not be negative"}
	}
	return nil
}

// StructuralHash returns a hash over the settings the whole cache depends on.
// When it changes the cache store must be invalidated wholesale: a different
// algorithm or file selection makes every cached record untrustworthy.
func (c *Config) StructuralHash() string {
	h := sha256.New()

	write := func(values ...string) {
		for _, s := range values {
			h.Write([]byte(s))
			h.Write([]byte{0})
		}
	}

	write("algorithm", c.Scan.Algorithm)
	write(sortedCopy(c.Scan.Extensions)...)
	write(sortedCopy(c.Scan.Excludes)...)
	write(sortedCopy(c.Scan.BaseTypeSuffixes)...)

	return fmt.Sprintf("%x", h.Sum(nil))
}

func sortedCopy(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
