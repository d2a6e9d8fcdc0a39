// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Repo       RepoConfig       `mapstructure:"repo" yaml:"repo"`
	Miner      MinerConfig      `mapstructure:"miner" yaml:"miner"`
	Runner     RunnerConfig     `mapstructure:"runner" yaml:"runner"`
	Selection  SelectionConfig  `mapstructure:"selection" yaml:"selection"`
	Generator  GeneratorConfig  `mapstructure:"generator" yaml:"generator"`
	Evaluation EvaluationConfig `mapstructure:"evaluation" yaml:"evaluation"`
}

// LoggerConfig controls the zap logger construction.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes, per lumberjack
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// RepoConfig locates the repository under evaluation.
type RepoConfig struct {
	Root string `mapstructure:"root" yaml:"root"`
	// AllowDirty permits starting a batch on a worktree that already has
	// uncommitted changes. The snapshot still captures and restores them.
	AllowDirty  bool   `mapstructure:"allow_dirty" yaml:"allow_dirty"`
	ProjectType string `mapstructure:"project_type" yaml:"project_type"`
	Language    string `mapstructure:"language" yaml:"language"`
	Framework   string `mapstructure:"framework" yaml:"framework"`
}

// MinerConfig bounds the historical case miner.
type MinerConfig struct {
	Lookback      time.Duration `mapstructure:"lookback" yaml:"lookback"`
	MessageFilter string        `mapstructure:"message_filter" yaml:"message_filter"`
	MaxCommits    int           `mapstructure:"max_commits" yaml:"max_commits"`
	SourceExts    []string      `mapstructure:"source_exts" yaml:"source_exts"`
	TestMarkers   []string      `mapstructure:"test_markers" yaml:"test_markers"`
}

// RunnerConfig holds the build and test collaborator commands. Commands are
// argv slices executed relative to the repo root, never shell strings.
type RunnerConfig struct {
	BuildCommand []string      `mapstructure:"build_command" yaml:"build_command"`
	TestCommand  []string      `mapstructure:"test_command" yaml:"test_command"`
	BuildTimeout time.Duration `mapstructure:"build_timeout" yaml:"build_timeout"`
	TestTimeout  time.Duration `mapstructure:"test_timeout" yaml:"test_timeout"`
}

// SelectionConfig tunes the selection engine.
type SelectionConfig struct {
	Strategy        string   `mapstructure:"strategy" yaml:"strategy"`
	ConfidenceW     float64  `mapstructure:"confidence_weight" yaml:"confidence_weight"`
	ImpactW         float64  `mapstructure:"impact_weight" yaml:"impact_weight"`
	ValidationW     float64  `mapstructure:"validation_weight" yaml:"validation_weight"`
	ContextW        float64  `mapstructure:"context_weight" yaml:"context_weight"`
	PreferredTypes  []string `mapstructure:"preferred_types" yaml:"preferred_types"`
	AvoidedTypes    []string `mapstructure:"avoided_types" yaml:"avoided_types"`
	AllowBreaking   bool     `mapstructure:"allow_breaking" yaml:"allow_breaking"`
	LearningEnabled bool     `mapstructure:"learning_enabled" yaml:"learning_enabled"`
	HistorySize     int      `mapstructure:"history_size" yaml:"history_size"`
}

// GeneratorConfig configures the candidate-generator collaborator.
type GeneratorConfig struct {
	Provider      string        `mapstructure:"provider" yaml:"provider"`
	Model         string        `mapstructure:"model" yaml:"model"`
	APIKeyEnv     string        `mapstructure:"api_key_env" yaml:"api_key_env"`
	MaxCandidates int           `mapstructure:"max_candidates" yaml:"max_candidates"`
	Temperature   float32       `mapstructure:"temperature" yaml:"temperature"`
	APITimeout    time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
}

// EvaluationConfig tunes the batch harness.
type EvaluationConfig struct {
	ReportPath string `mapstructure:"report_path" yaml:"report_path"`
	// Concurrency bounds the non-mutating stages (request building,
	// generation, selection). Patch application is always serial.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "patchbench")
	v.SetDefault("logger.log_file", "patchbench.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Repo --
	v.SetDefault("repo.root", ".")
	v.SetDefault("repo.allow_dirty", false)
	v.SetDefault("repo.project_type", "library")
	v.SetDefault("repo.language", "go")
	v.SetDefault("repo.framework", "")

	// -- Miner --
	v.SetDefault("miner.lookback", 90*24*time.Hour)
	v.SetDefault("miner.message_filter", `(?i)\bfix(es|ed)?\b|\bbug\b|\bpatch\b`)
	v.SetDefault("miner.max_commits", 50)
	v.SetDefault("miner.source_exts", []string{".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".java", ".rs", ".c", ".cpp"})
	v.SetDefault("miner.test_markers", []string{"_test", ".test.", ".spec.", "/test/", "/tests/"})

	// -- Runner --
	v.SetDefault("runner.build_command", []string{"go", "build", "./..."})
	v.SetDefault("runner.test_command", []string{"go", "test", "./..."})
	v.SetDefault("runner.build_timeout", "5m")
	v.SetDefault("runner.test_timeout", "10m")

	// -- Selection --
	v.SetDefault("selection.strategy", "weighted")
	v.SetDefault("selection.confidence_weight", 0.4)
	v.SetDefault("selection.impact_weight", 0.3)
	v.SetDefault("selection.validation_weight", 0.2)
	v.SetDefault("selection.context_weight", 0.1)
	v.SetDefault("selection.allow_breaking", false)
	v.SetDefault("selection.learning_enabled", true)
	v.SetDefault("selection.history_size", 256)

	// -- Generator --
	v.SetDefault("generator.provider", "gemini")
	v.SetDefault("generator.model", "gemini-2.5-pro")
	v.SetDefault("generator.api_key_env", "GEMINI_API_KEY")
	v.SetDefault("generator.max_candidates", 3)
	v.SetDefault("generator.temperature", 0.2)
	v.SetDefault("generator.api_timeout", "3m")

	// -- Evaluation --
	v.SetDefault("evaluation.report_path", "patchbench-report.json")
	v.SetDefault("evaluation.concurrency", 4)
}
