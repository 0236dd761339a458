// Package pipeline drives jobs through their declared stages.
//
// The orchestrator owns the per-stage control flow: resolve the stage's
// parameters through the decision engine, derive the cache key, and either
// reuse a published artifact or execute the stage's collaborator under a
// cache lease. Completed work is published to the cache, appended to the
// job's manifest, and logged to the training recorder, so a re-run of the
// same media with the same configuration touches no collaborator at all.
//
// Failure handling follows the stage declarations. A required stage that
// exhausts its retries aborts the job; an optional stage degrades it, its
// fallback outputs standing in for the artifact downstream stages expected.
// A cache outage never fails a job: the orchestrator logs the outage and
// runs the affected stages uncached.
package pipeline
