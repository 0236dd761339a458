// Package manifest is the per-job provenance ledger.
//
// Each job run owns one manifest file: a header line, one JSON line per
// attempted stage execution, and a seal line written when the job ends. The
// one-record-per-line layout keeps manifests diffable and lets external audit
// tooling tail them. Records are appended exactly once per attempt, including
// failures; the ledger is the source of truth for what ran, with what
// configuration, and what it produced.
//
// Replay reads a sealed or partial manifest back, which is how a resumed job
// learns which cache keys already completed.
package manifest
