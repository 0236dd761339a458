// Package training appends decision feedback tuples to a durable dataset.
//
// Each record pairs a fingerprint with the stage configuration actually used
// and the observed outcome; out-of-band retraining of the predictor consumes
// the file, nothing in the pipeline reads it back. Recording is
// fire-and-forget: failures are logged and swallowed so the critical path
// never blocks or fails on its own telemetry. Records are whole-line JSON
// appends, so concurrent writers interleave at record granularity only.
package training
