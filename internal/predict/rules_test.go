package predict

import (
	"context"
	"testing"

	"treadle/internal/config"
	"treadle/internal/fingerprint"
)

func defaultRules() Rules {
	cfg := config.Default()
	return NewRules(cfg.Predictor.TierLadder, cfg.Predictor.Heuristics)
}

func cleanFingerprint() fingerprint.Fingerprint {
	return fingerprint.Fingerprint{
		DurationSeconds: 120,
		SampleRate:      16000,
		Channels:        1,
		SNR:             30,
		SpeakerCount:    1,
		Complexity:      0.3,
		Language:        "en",
	}
}

func tierIndex(t *testing.T, ladder []string, tier string) int {
	t.Helper()
	for i, name := range ladder {
		if name == tier {
			return i
		}
	}
	t.Fatalf("tier %q not in ladder %v", tier, ladder)
	return -1
}

func TestRulesCleanSignalPicksSmall(t *testing.T) {
	rules := defaultRules()
	p := rules.Predict(context.Background(), cleanFingerprint())

	if p.ModelTier != "small" {
		t.Errorf("ModelTier = %q, want small", p.ModelTier)
	}
	if p.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9 for signals clear of thresholds", p.Confidence)
	}
	if p.Reasoning == "" {
		t.Error("Reasoning must not be empty")
	}
}

func TestRulesDegradedSignalHitsCeiling(t *testing.T) {
	rules := defaultRules()
	fp := fingerprint.Fingerprint{
		DurationSeconds: 1800,
		SampleRate:      16000,
		Channels:        2,
		SNR:             12,
		SpeakerCount:    3,
		Complexity:      0.8,
		Language:        "en",
	}
	p := rules.Predict(context.Background(), fp)
	if p.ModelTier != "large" {
		t.Errorf("ModelTier = %q, want large (configured ceiling)", p.ModelTier)
	}

	fp.Complexity = 1.0
	capped := rules.Predict(context.Background(), fp)
	if capped.ModelTier != "large" {
		t.Errorf("ModelTier at complexity 1.0 = %q, ceiling must hold", capped.ModelTier)
	}
	if capped.SearchWidth > config.Default().Predictor.Heuristics.MaxSearchWidth {
		t.Errorf("SearchWidth %d exceeds configured maximum", capped.SearchWidth)
	}
}

func TestRulesSpeakerCountMonotonic(t *testing.T) {
	rules := defaultRules()
	ladder := config.Default().Predictor.TierLadder

	prevTier := -1
	prevWidth := 0
	for speakers := 1; speakers <= 6; speakers++ {
		fp := cleanFingerprint()
		fp.SpeakerCount = speakers
		p := rules.Predict(context.Background(), fp)
		idx := tierIndex(t, ladder, p.ModelTier)
		if idx < prevTier {
			t.Errorf("speakers %d: tier index %d decreased from %d", speakers, idx, prevTier)
		}
		if p.SearchWidth < prevWidth {
			t.Errorf("speakers %d: search width %d decreased from %d", speakers, p.SearchWidth, prevWidth)
		}
		prevTier = idx
		prevWidth = p.SearchWidth
	}
}

func TestRulesSNRMonotonic(t *testing.T) {
	rules := defaultRules()
	ladder := config.Default().Predictor.TierLadder

	prevTier := -1
	for snr := 40.0; snr >= 5.0; snr -= 5.0 {
		fp := cleanFingerprint()
		fp.SNR = snr
		p := rules.Predict(context.Background(), fp)
		idx := tierIndex(t, ladder, p.ModelTier)
		if idx < prevTier {
			t.Errorf("snr %.0f: tier index %d decreased from %d", snr, idx, prevTier)
		}
		prevTier = idx
	}
}

func TestRulesLongDurationLowersTier(t *testing.T) {
	rules := defaultRules()
	ladder := config.Default().Predictor.TierLadder

	short := cleanFingerprint()
	long := cleanFingerprint()
	long.DurationSeconds = 7200

	shortIdx := tierIndex(t, ladder, rules.Predict(context.Background(), short).ModelTier)
	longIdx := tierIndex(t, ladder, rules.Predict(context.Background(), long).ModelTier)
	if longIdx > shortIdx {
		t.Errorf("long duration raised tier: %d > %d", longIdx, shortIdx)
	}
}

func TestRulesDeterministic(t *testing.T) {
	rules := defaultRules()
	fp := cleanFingerprint()
	first := rules.Predict(context.Background(), fp)
	second := rules.Predict(context.Background(), fp)
	if first != second {
		t.Fatalf("predictions differ for identical fingerprint: %+v vs %+v", first, second)
	}
}

func TestRulesEmptyLadder(t *testing.T) {
	rules := NewRules(nil, config.Default().Predictor.Heuristics)
	p := rules.Predict(context.Background(), cleanFingerprint())
	if p.ModelTier == "" || p.SearchWidth < 1 || p.BatchSize < 1 {
		t.Fatalf("empty ladder must still yield a usable prediction: %+v", p)
	}
	if p.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0 when no ladder is configured", p.Confidence)
	}
}
