package predict

import (
	"context"
	"fmt"
	"strings"

	"treadle/internal/config"
	"treadle/internal/fingerprint"
)

// ruleBaseConfidence is what the rule table reports when every signal sits
// comfortably clear of its threshold.
const ruleBaseConfidence = 0.9

// grayPenalty is deducted per signal that lands close to its cut point,
// where a small measurement error would flip the rule.
const grayPenalty = 0.15

// Rules is the deterministic heuristic predictor. The zero value is unusable;
// construct via NewRules.
type Rules struct {
	ladder []string
	h      config.Heuristics
}

// NewRules builds the rule table from the configured tier ladder and
// thresholds. The ladder is ordered cheapest to most capable.
func NewRules(ladder []string, h config.Heuristics) Rules {
	cp := make([]string, len(ladder))
	copy(cp, ladder)
	return Rules{ladder: cp, h: h}
}

// Predict applies the monotonic heuristics. Each raising signal moves one
// rung up the ladder, a long duration moves one rung down, and the result is
// clamped to the configured ladder so no recommendation exceeds the ceiling.
func (r Rules) Predict(_ context.Context, fp fingerprint.Fingerprint) Prediction {
	if len(r.ladder) == 0 {
		return Prediction{
			ModelTier:   "base",
			SearchWidth: 1,
			BatchSize:   1,
			Confidence:  0,
			Reasoning:   "no tier ladder configured; minimal parameters",
		}
	}

	baseIdx := 1
	if baseIdx >= len(r.ladder) {
		baseIdx = len(r.ladder) - 1
	}

	var raises int
	var reasons []string

	if fp.SNR < r.h.LowSNR {
		raises++
		reasons = append(reasons, fmt.Sprintf("snr %.1f below %.1f raises tier", fp.SNR, r.h.LowSNR))
	}
	if fp.SpeakerCount >= r.h.HighSpeakerCount {
		raises++
		reasons = append(reasons, fmt.Sprintf("%d speakers raises tier", fp.SpeakerCount))
	}
	if fp.Complexity >= r.h.HighComplexity {
		raises++
		reasons = append(reasons, fmt.Sprintf("complexity %.2f raises tier", fp.Complexity))
	}

	var drops int
	if fp.DurationSeconds > r.h.LongDurationSeconds {
		drops = 1
		reasons = append(reasons, fmt.Sprintf("duration %.0fs lowers tier to bound cost", fp.DurationSeconds))
	}

	idx := clampIndex(baseIdx+raises-drops, len(r.ladder))
	tier := r.ladder[idx]

	width := clampInt(2+2*raises-drops, 1, r.h.MaxSearchWidth)
	batch := clampInt(r.h.MaxBatchSize/(1+raises), 1, r.h.MaxBatchSize)

	confidence := ruleBaseConfidence - grayPenalty*float64(r.graySignals(fp))
	if confidence < 0.3 {
		confidence = 0.3
	}

	quality := clamp01(0.55 + 0.1*float64(idx))

	if len(reasons) == 0 {
		reasons = append(reasons, "all signals nominal")
	}
	reasons = append(reasons, "selected tier "+tier)

	return Prediction{
		ModelTier:       tier,
		SearchWidth:     width,
		BatchSize:       batch,
		Confidence:      confidence,
		ExpectedQuality: quality,
		Reasoning:       strings.Join(reasons, "; "),
	}
}

// graySignals counts scalar signals sitting within 15% of their cut point,
// where the rule outcome is least trustworthy.
func (r Rules) graySignals(fp fingerprint.Fingerprint) int {
	gray := 0
	if nearThreshold(fp.SNR, r.h.LowSNR) {
		gray++
	}
	if nearThreshold(fp.Complexity, r.h.HighComplexity) {
		gray++
	}
	if nearThreshold(fp.DurationSeconds, r.h.LongDurationSeconds) {
		gray++
	}
	return gray
}

func nearThreshold(value, threshold float64) bool {
	if threshold == 0 {
		return false
	}
	delta := value - threshold
	if delta < 0 {
		delta = -delta
	}
	return delta <= 0.15*threshold
}

func (r Rules) validateTier(tier string) error {
	tier = strings.ToLower(strings.TrimSpace(tier))
	for _, known := range r.ladder {
		if known == tier {
			return nil
		}
	}
	return fmt.Errorf("tier %q not in configured ladder", tier)
}

func clampIndex(idx, length int) int {
	if idx < 0 {
		return 0
	}
	if idx >= length {
		return length - 1
	}
	return idx
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
