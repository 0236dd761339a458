package stage

import (
	"context"

	"treadle/internal/decision"
	"treadle/internal/fingerprint"
)

// Request carries everything a collaborator needs to execute one stage for
// one job. Inputs maps logical names to the artifact refs produced by the
// stages this one depends on.
type Request struct {
	JobID       string
	MediaRef    string
	Fingerprint fingerprint.Fingerprint
	Config      decision.StageConfig
	Inputs      map[string]string
}

// Result reports a successful stage execution. ArtifactRef locates the
// produced artifact; Metrics feeds the training log and is optional.
type Result struct {
	ArtifactRef string
	Metrics     map[string]float64
}

// Collaborator executes the work of a single pipeline stage.
type Collaborator interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// Health summarizes the readiness of a collaborator before a run starts.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// HealthChecker is implemented by collaborators that can report readiness.
// The orchestrator checks it during preflight and refuses to start a job
// when a required stage's collaborator is not ready.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}
