// Package services defines the shared error taxonomy and context plumbing
// used across the orchestration core.
//
// Sentinel markers classify failures at the boundary between the pipeline and
// its collaborators: unreadable inputs, cache invariant violations, cache
// outages, validation and configuration mistakes, and transient faults. Wrap
// tags an error with one marker plus stage context so callers can classify
// with errors.Is without parsing strings.
//
// Context helpers carry job, stage, and correlation identifiers so log lines
// emitted deep inside a stage automatically name the work they belong to.
package services
