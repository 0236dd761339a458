// Package config loads, normalizes, and validates the TOML configuration that
// drives the orchestration core.
//
// The configuration is an explicit immutable value handed to components at
// construction time; there is no ambient global state. It covers directory
// layout, logging, the cache store, the adaptive predictor (endpoint, tier
// ladder, heuristic thresholds, confidence threshold), workflow retry and
// timeout limits, per-stage static defaults, and per-stage manual overrides.
//
// Load resolves the file, applies defaults, expands ~ paths, and validates the
// result; a missing file yields the repository defaults so tests and one-off
// runs work without setup.
package config
