// Package config holds the orchestrator configuration, loaded through viper
// from the config file, environment, and command-line flags.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/ncode25/Copilot-orchestrator/internal/retry"
)

// Config is the complete orchestrator configuration.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Report    ReportConfig    `mapstructure:"report"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SchedulerConfig controls partitioning and the correction loop.
type SchedulerConfig struct {
	// MaxParallel caps concurrently dispatched items. Zero means unlimited.
	MaxParallel int `mapstructure:"max_parallel"`
	// MaxCorrectionRounds bounds corrective attempts per original item.
	MaxCorrectionRounds int `mapstructure:"max_correction_rounds"`
}

// ExecutorConfig controls how items are dispatched.
type ExecutorConfig struct {
	// Command is the shell command template run per item. The item's ID,
	// description, and resources are exposed through environment variables.
	Command string `mapstructure:"command"`
	// DryRun makes every item succeed without invoking the command.
	DryRun bool `mapstructure:"dry_run"`
}

// WatchConfig controls the live footprint watcher.
type WatchConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Root is the directory watched for writes. Empty means the working
	// directory.
	Root string `mapstructure:"root"`
}

// ReportConfig controls report output.
type ReportConfig struct {
	// Format is "json" or "yaml".
	Format string `mapstructure:"format"`
	// OutputFile receives the report; empty means stdout.
	OutputFile string `mapstructure:"output_file"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Level   string `mapstructure:"level"`
	// Dir receives run.log; empty logs to stderr.
	Dir string `mapstructure:"dir"`
}

// ValidReportFormats returns the accepted report output formats.
func ValidReportFormats() []string {
	return []string{"json", "yaml"}
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxParallel:         0,
			MaxCorrectionRounds: retry.DefaultMaxRounds,
		},
		Executor: ExecutorConfig{
			Command: "",
			DryRun:  false,
		},
		Watch: WatchConfig{
			Enabled: false,
			Root:    "",
		},
		Report: ReportConfig{
			Format:     "json",
			OutputFile: "",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
	}
}

// SetDefaults registers every default with viper so partial config files and
// environment overrides merge cleanly.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("scheduler.max_parallel", defaults.Scheduler.MaxParallel)
	viper.SetDefault("scheduler.max_correction_rounds", defaults.Scheduler.MaxCorrectionRounds)

	viper.SetDefault("executor.command", defaults.Executor.Command)
	viper.SetDefault("executor.dry_run", defaults.Executor.DryRun)

	viper.SetDefault("watch.enabled", defaults.Watch.Enabled)
	viper.SetDefault("watch.root", defaults.Watch.Root)

	viper.SetDefault("report.format", defaults.Report.Format)
	viper.SetDefault("report.output_file", defaults.Report.OutputFile)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when
// loading fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the user's config directory for the orchestrator.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "copilot-orchestrator")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".copilot-orchestrator"
	}
	return filepath.Join(home, ".config", "copilot-orchestrator")
}

// ConfigFile returns the path of the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
