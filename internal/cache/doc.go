// Package cache is the content-addressed artifact store shared by concurrent
// jobs.
//
// Entries are keyed by (fingerprint hash, stage id, config hash) and persisted
// in SQLite; the artifact bytes themselves stay wherever the producing stage
// wrote them, only the reference is stored. Acquire provides the
// at-most-one-concurrent-computation guarantee: for a given key exactly one
// caller becomes the owner and everyone else waits until the owner publishes
// or releases. Ownership is coordinated in process; an exclusive flock on the
// cache directory extends the guarantee across processes by admitting one
// store per machine.
//
// Publishing over a key that already holds a different artifact is a fatal
// invariant violation (two producers computed divergent content) and is
// reported loudly, never papered over.
package cache
