package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Fingerprint is a deterministic summary of one media input. It is computed
// once per job and never mutated.
type Fingerprint struct {
	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
	SNR             float64 `json:"snr"`
	SpeakerCount    int     `json:"speaker_count"`
	Complexity      float64 `json:"complexity"`
	Language        string  `json:"language"`
}

// Hash returns the canonical hex digest of the fingerprint. Scalars are
// rendered with strconv's shortest representation so equal values always
// produce equal digests.
func (f Fingerprint) Hash() string {
	var b strings.Builder
	b.WriteString("v1|")
	b.WriteString(formatFloat(f.DurationSeconds))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(f.SampleRate))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(f.Channels))
	b.WriteByte('|')
	b.WriteString(formatFloat(f.SNR))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(f.SpeakerCount))
	b.WriteByte('|')
	b.WriteString(formatFloat(f.Complexity))
	b.WriteByte('|')
	b.WriteString(f.Language)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
