// Package fingerprint derives a compact deterministic feature vector from a
// media input.
//
// The Fingerprint summarizes the signals the decision engine and cache need:
// duration, sample rate, channel count, estimated signal-to-noise ratio,
// estimated speaker count, a 0-1 complexity score, and the declared language.
// Byte-identical input probed with the same declared language always yields a
// bitwise-identical Fingerprint, which makes its hash usable as a cache key
// component.
//
// Probing itself is an external concern; the Extractor talks to a Prober
// implementation (typically an ffprobe-style tool wrapper) and never writes
// anything.
package fingerprint
