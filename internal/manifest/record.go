package manifest

import (
	"time"

	"treadle/internal/decision"
)

// Status classifies one stage attempt.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusDegraded  Status = "degraded"
	StatusFailed    Status = "failed"
)

// StageRecord is one stage's execution trace. Error is present exactly when
// the status is degraded or failed.
type StageRecord struct {
	StageID    string               `json:"stage_id"`
	Inputs     []string             `json:"inputs,omitempty"`
	Outputs    []string             `json:"outputs,omitempty"`
	Config     decision.StageConfig `json:"config"`
	CacheKey   string               `json:"cache_key,omitempty"`
	Status     Status               `json:"status"`
	DurationMS int64                `json:"duration_ms"`
	Error      string               `json:"error,omitempty"`
	RecordedAt time.Time            `json:"recorded_at"`
}

// lineKind discriminates manifest lines on disk.
type lineKind string

const (
	kindHeader lineKind = "header"
	kindStage  lineKind = "stage"
	kindSeal   lineKind = "seal"
)

type manifestLine struct {
	Kind lineKind `json:"kind"`

	// header fields
	JobID       string `json:"job_id,omitempty"`
	MediaRef    string `json:"media_ref,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`

	// stage fields
	Stage *StageRecord `json:"stage,omitempty"`

	// seal fields
	Outcome  string `json:"outcome,omitempty"`
	SealedAt string `json:"sealed_at,omitempty"`
}

// Manifest is a replayed ledger.
type Manifest struct {
	JobID       string
	MediaRef    string
	Fingerprint string
	Records     []StageRecord
	Outcome     string
	Sealed      bool
}

// CompletedKeys returns the cache keys of every completed or skipped stage,
// in execution order. A resumed job treats these as already satisfied.
func (m *Manifest) CompletedKeys() []string {
	var keys []string
	for _, rec := range m.Records {
		if rec.CacheKey == "" {
			continue
		}
		if rec.Status == StatusCompleted || rec.Status == StatusSkipped {
			keys = append(keys, rec.CacheKey)
		}
	}
	return keys
}
