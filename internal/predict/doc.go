// Package predict recommends stage parameters for a fingerprint.
//
// Two implementations satisfy the same contract: a rule table applying
// monotonic heuristics over the fingerprint scalars, and an optional learned
// estimator reached over HTTP. The exported Adaptive predictor composes them
// so that Predict never fails: when the estimator is missing, unreachable, or
// answers garbage, the rule table answers instead with a capped confidence
// and a reasoning string naming the fallback.
//
// The monotonic directions are contractual: lower SNR, more speakers, and
// higher complexity each independently raise the recommended tier and search
// width; longer duration lowers them to bound cost. Only the cut points come
// from configuration.
package predict
