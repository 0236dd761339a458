package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizePredictor()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ManifestDir) == "" {
		c.Paths.ManifestDir = defaultManifestDir
	}
	if c.Paths.ManifestDir, err = expandPath(c.Paths.ManifestDir); err != nil {
		return fmt.Errorf("paths.manifest_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TrainingLog) == "" {
		c.Paths.TrainingLog = defaultTrainingLog
	}
	if c.Paths.TrainingLog, err = expandPath(c.Paths.TrainingLog); err != nil {
		return fmt.Errorf("paths.training_log: %w", err)
	}
	return nil
}

func (c *Config) normalizeCache() error {
	if strings.TrimSpace(c.Cache.Dir) == "" {
		c.Cache.Dir = defaultCacheDir
	}
	var err error
	if c.Cache.Dir, err = expandPath(c.Cache.Dir); err != nil {
		return fmt.Errorf("cache.dir: %w", err)
	}
	if c.Cache.MaxAgeHours < 0 {
		c.Cache.MaxAgeHours = 0
	}
	return nil
}

func (c *Config) normalizePredictor() {
	if c.Predictor.APIKey == "" {
		if value, ok := os.LookupEnv("TREADLE_PREDICTOR_API_KEY"); ok {
			c.Predictor.APIKey = strings.TrimSpace(value)
		}
	}
	c.Predictor.Endpoint = strings.TrimSpace(c.Predictor.Endpoint)
	if c.Predictor.TimeoutSeconds <= 0 {
		c.Predictor.TimeoutSeconds = defaultPredictorTimeout
	}
	if len(c.Predictor.TierLadder) == 0 {
		c.Predictor.TierLadder = defaultTierLadder()
	}
	for i, tier := range c.Predictor.TierLadder {
		c.Predictor.TierLadder[i] = strings.ToLower(strings.TrimSpace(tier))
	}
	h := &c.Predictor.Heuristics
	if h.LowSNR <= 0 {
		h.LowSNR = defaultLowSNR
	}
	if h.HighSpeakerCount <= 0 {
		h.HighSpeakerCount = defaultHighSpeakerCount
	}
	if h.HighComplexity <= 0 {
		h.HighComplexity = defaultHighComplexity
	}
	if h.LongDurationSeconds <= 0 {
		h.LongDurationSeconds = defaultLongDurationSeconds
	}
	if h.MaxSearchWidth <= 0 {
		h.MaxSearchWidth = defaultMaxSearchWidth
	}
	if h.MaxBatchSize <= 0 {
		h.MaxBatchSize = defaultMaxBatchSize
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.StageRetryLimit < 0 {
		c.Workflow.StageRetryLimit = 0
	}
	if c.Workflow.StageTimeoutSeconds < 0 {
		c.Workflow.StageTimeoutSeconds = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
