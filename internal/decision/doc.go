// Package decision resolves the final configuration for a stage invocation.
//
// Resolution applies a strict priority order, first match wins: a manual
// override, then the predictor's recommendation when its confidence meets the
// configured threshold (inclusive), then the stage's static default, then a
// built-in minimal-risk fallback that exists for every stage. The winning
// tier is recorded on the StageConfig as its source tag so manifests and
// training records can attribute every run.
//
// StageConfig hashes canonically (sorted parameter names) so two resolutions
// with equal parameters always produce the same cache key component.
package decision
