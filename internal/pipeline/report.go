package pipeline

import "treadle/internal/manifest"

// Job outcomes recorded in the manifest seal.
const (
	OutcomeCompleted = "completed"
	OutcomeDegraded  = "degraded"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Report summarizes one job run. Err holds the terminal error when the
// outcome is failed or cancelled.
type Report struct {
	JobID           string
	FingerprintHash string
	ManifestPath    string
	Outcome         string
	Stages          []manifest.StageRecord
	DegradedStages  []string
	Err             error
}

// Succeeded reports whether the job produced all required artifacts.
// A degraded job still succeeds; only its optional stages fell back.
func (r *Report) Succeeded() bool {
	return r.Outcome == OutcomeCompleted || r.Outcome == OutcomeDegraded
}
