package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	ManifestDir string `toml:"manifest_dir"`
	TrainingLog string `toml:"training_log"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Cache contains configuration for the artifact cache store.
type Cache struct {
	Enabled     bool   `toml:"enabled"`
	Dir         string `toml:"dir"`
	MaxAgeHours int    `toml:"max_age_hours"` // 0 disables age-based eviction
}

// Heuristics holds the rule thresholds the predictor applies to fingerprint
// scalars. The monotonic direction of each signal is fixed by contract; only
// the cut points are configurable.
type Heuristics struct {
	LowSNR              float64 `toml:"low_snr"`
	HighSpeakerCount    int     `toml:"high_speaker_count"`
	HighComplexity      float64 `toml:"high_complexity"`
	LongDurationSeconds float64 `toml:"long_duration_seconds"`
	MaxSearchWidth      int     `toml:"max_search_width"`
	MaxBatchSize        int     `toml:"max_batch_size"`
}

// Predictor contains configuration for adaptive parameter selection.
type Predictor struct {
	Enabled             bool       `toml:"enabled"`
	ConfidenceThreshold float64    `toml:"confidence_threshold"`
	Endpoint            string     `toml:"endpoint"`
	APIKey              string     `toml:"api_key"`
	TimeoutSeconds      int        `toml:"timeout_seconds"`
	TierLadder          []string   `toml:"tier_ladder"`
	Heuristics          Heuristics `toml:"heuristics"`
}

// Workflow contains orchestrator pacing and retry configuration.
type Workflow struct {
	StageRetryLimit     int `toml:"stage_retry_limit"`
	StageTimeoutSeconds int `toml:"stage_timeout_seconds"`
}

// Override pins a stage to operator-chosen parameters. Force disables the
// predictor for the stage even when no parameters are given.
type Override struct {
	Force  bool              `toml:"force"`
	Params map[string]string `toml:"params"`
}

// Config is the root configuration value.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Logging   Logging   `toml:"logging"`
	Cache     Cache     `toml:"cache"`
	Predictor Predictor `toml:"predictor"`
	Workflow  Workflow  `toml:"workflow"`

	StageDefaults map[string]map[string]string `toml:"stage_defaults"`
	Overrides     map[string]Override          `toml:"overrides"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/treadle/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. A missing file is not an
// error; defaults apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err = os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("treadle.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.ManifestDir, filepath.Dir(c.Paths.TrainingLog)}
	if c.Cache.Enabled {
		dirs = append(dirs, c.Cache.Dir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// StageDefault returns a copy of the configured static defaults for stageID.
func (c *Config) StageDefault(stageID string) (map[string]string, bool) {
	params, ok := c.StageDefaults[stageID]
	if !ok || len(params) == 0 {
		return nil, false
	}
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return cp, true
}

// StageOverride returns the manual override configured for stageID, if any.
func (c *Config) StageOverride(stageID string) (Override, bool) {
	ov, ok := c.Overrides[stageID]
	if !ok {
		return Override{}, false
	}
	if len(ov.Params) == 0 && !ov.Force {
		return Override{}, false
	}
	return ov, true
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		trimmed = filepath.Join(home, trimmed[2:])
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", trimmed, err)
	}
	return abs, nil
}
