package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePredictor(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateStageTables()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validatePredictor() error {
	p := c.Predictor
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return errors.New("predictor.confidence_threshold must be between 0 and 1")
	}
	if len(p.TierLadder) == 0 {
		return errors.New("predictor.tier_ladder must name at least one tier")
	}
	seen := make(map[string]struct{}, len(p.TierLadder))
	for _, tier := range p.TierLadder {
		if tier == "" {
			return errors.New("predictor.tier_ladder entries must not be empty")
		}
		if _, dup := seen[tier]; dup {
			return fmt.Errorf("predictor.tier_ladder repeats tier %q", tier)
		}
		seen[tier] = struct{}{}
	}
	if p.Heuristics.HighComplexity > 1 {
		return errors.New("predictor.heuristics.high_complexity must not exceed 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
}

func (c *Config) validateStageTables() error {
	for stageID, params := range c.StageDefaults {
		if strings.TrimSpace(stageID) == "" {
			return errors.New("stage_defaults contains an empty stage id")
		}
		for name := range params {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("stage_defaults.%s contains an empty parameter name", stageID)
			}
		}
	}
	for stageID, override := range c.Overrides {
		if strings.TrimSpace(stageID) == "" {
			return errors.New("overrides contains an empty stage id")
		}
		for name := range override.Params {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("overrides.%s contains an empty parameter name", stageID)
			}
		}
	}
	return nil
}
