package testsupport

import (
	"path/filepath"
	"testing"

	"treadle/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = base
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ManifestDir = filepath.Join(base, "manifests")
	cfg.Paths.TrainingLog = filepath.Join(base, "training", "decisions.jsonl")
	cfg.Cache.Dir = filepath.Join(base, "cache")

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithPredictor enables the predictor at the given confidence threshold.
func WithPredictor(threshold float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Predictor.Enabled = true
		cfg.Predictor.ConfidenceThreshold = threshold
	}
}

// WithCacheDisabled turns the artifact cache off.
func WithCacheDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Cache.Enabled = false
	}
}

// WithStageDefault sets the configured default parameters for a stage.
func WithStageDefault(stageID string, params map[string]string) ConfigOption {
	return func(cfg *config.Config) {
		if cfg.StageDefaults == nil {
			cfg.StageDefaults = make(map[string]map[string]string)
		}
		cfg.StageDefaults[stageID] = params
	}
}

// WithOverride pins a stage to operator parameters.
func WithOverride(stageID string, override config.Override) ConfigOption {
	return func(cfg *config.Config) {
		if cfg.Overrides == nil {
			cfg.Overrides = make(map[string]config.Override)
		}
		cfg.Overrides[stageID] = override
	}
}

// WithStageRetryLimit sets the retry budget for stage execution.
func WithStageRetryLimit(limit int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.StageRetryLimit = limit
	}
}
