package decision

import (
	"context"
	"testing"

	"treadle/internal/config"
	"treadle/internal/fingerprint"
	"treadle/internal/predict"
)

type fixedPredictor struct {
	prediction predict.Prediction
	calls      int
}

func (f *fixedPredictor) Predict(context.Context, fingerprint.Fingerprint) predict.Prediction {
	f.calls++
	return f.prediction
}

func testFingerprint() fingerprint.Fingerprint {
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

func confidentPrediction(confidence float64) predict.Prediction {
	return predict.Prediction{
		ModelTier:   "small",
		SearchWidth: 4,
		BatchSize:   16,
		Confidence:  confidence,
		Reasoning:   "test prediction",
	}
}

func TestOverrideAlwaysWins(t *testing.T) {
	cfg := config.Default()
	cfg.Predictor.ConfidenceThreshold = 0.5
	predictor := &fixedPredictor{prediction: confidentPrediction(0.99)}
	engine := NewEngine(&cfg, predictor, nil)

	resolved := engine.Resolve(context.Background(), "transcribe", testFingerprint(), map[string]string{"model_tier": "large"})
	if resolved.Source != SourceOverride {
		t.Fatalf("Source = %q, want override even at predictor confidence 0.99", resolved.Source)
	}
	if resolved.Param("model_tier") != "large" {
		t.Errorf("model_tier = %q, want large", resolved.Param("model_tier"))
	}
	if predictor.calls != 0 {
		t.Errorf("predictor consulted %d times despite override", predictor.calls)
	}
}

func TestConfiguredOverrideWins(t *testing.T) {
	cfg := config.Default()
	cfg.Overrides = map[string]config.Override{
		"transcribe": {Params: map[string]string{"model_tier": "medium"}},
	}
	engine := NewEngine(&cfg, &fixedPredictor{prediction: confidentPrediction(0.99)}, nil)

	resolved := engine.Resolve(context.Background(), "transcribe", testFingerprint(), nil)
	if resolved.Source != SourceOverride {
		t.Fatalf("Source = %q, want override", resolved.Source)
	}
	if resolved.Param("model_tier") != "medium" {
		t.Errorf("model_tier = %q, want medium", resolved.Param("model_tier"))
	}
}

func TestThresholdBoundaryInclusive(t *testing.T) {
	cfg := config.Default()
	cfg.Predictor.ConfidenceThreshold = 0.7
	cfg.StageDefaults = map[string]map[string]string{
		"transcribe": {"model_tier": "small"},
	}

	atThreshold := NewEngine(&cfg, &fixedPredictor{prediction: confidentPrediction(0.7)}, nil)
	resolved := atThreshold.Resolve(context.Background(), "transcribe", testFingerprint(), nil)
	if resolved.Source != SourcePredicted {
		t.Errorf("confidence == threshold: Source = %q, want predicted (inclusive)", resolved.Source)
	}

	below := NewEngine(&cfg, &fixedPredictor{prediction: confidentPrediction(0.69)}, nil)
	resolved = below.Resolve(context.Background(), "transcribe", testFingerprint(), nil)
	if resolved.Source != SourceDefault {
		t.Errorf("confidence just below threshold: Source = %q, want default", resolved.Source)
	}
}

func TestPredictorDisabledFallsThrough(t *testing.T) {
	cfg := config.Default()
	cfg.Predictor.Enabled = false
	predictor := &fixedPredictor{prediction: confidentPrediction(0.99)}
	engine := NewEngine(&cfg, predictor, nil)

	resolved := engine.Resolve(context.Background(), "transcribe", testFingerprint(), nil)
	if resolved.Source != SourceFallback {
		t.Fatalf("Source = %q, want fallback with predictor disabled and no default", resolved.Source)
	}
	if predictor.calls != 0 {
		t.Errorf("predictor consulted while disabled")
	}
}

func TestForceOverrideBypassesPredictor(t *testing.T) {
	cfg := config.Default()
	cfg.Overrides = map[string]config.Override{
		"transcribe": {Force: true},
	}
	predictor := &fixedPredictor{prediction: confidentPrediction(0.99)}
	engine := NewEngine(&cfg, predictor, nil)

	resolved := engine.Resolve(context.Background(), "transcribe", testFingerprint(), nil)
	if resolved.Source != SourceFallback {
		t.Fatalf("Source = %q, want fallback when force pins out the predictor", resolved.Source)
	}
	if predictor.calls != 0 {
		t.Errorf("predictor consulted %d times despite force", predictor.calls)
	}
}

func TestFallbackGuaranteedForUnknownStage(t *testing.T) {
	cfg := config.Default()
	cfg.Predictor.Enabled = false
	engine := NewEngine(&cfg, nil, nil)

	resolved := engine.Resolve(context.Background(), "never-configured", testFingerprint(), nil)
	if resolved.Source != SourceFallback {
		t.Fatalf("Source = %q, want fallback", resolved.Source)
	}
	if resolved.Param("model_tier") == "" || resolved.Param("search_width") != "1" {
		t.Errorf("fallback params incomplete: %v", resolved.Params)
	}
}

func TestEndToEndThresholdScenario(t *testing.T) {
	// Real rule predictor, clean fingerprint: confidence 0.9, tier small.
	cfg := config.Default()
	rules := predict.NewRules(cfg.Predictor.TierLadder, cfg.Predictor.Heuristics)
	cfg.StageDefaults = map[string]map[string]string{
		"transcribe": {"model_tier": "medium"},
	}

	cfg.Predictor.ConfidenceThreshold = 0.7
	engine := NewEngine(&cfg, rules, nil)
	resolved := engine.Resolve(context.Background(), "transcribe", testFingerprint(), nil)
	if resolved.Source != SourcePredicted || resolved.Param("model_tier") != "small" {
		t.Errorf("threshold 0.7: got source=%q tier=%q, want predicted/small", resolved.Source, resolved.Param("model_tier"))
	}

	cfg.Predictor.ConfidenceThreshold = 0.95
	engine = NewEngine(&cfg, rules, nil)
	resolved = engine.Resolve(context.Background(), "transcribe", testFingerprint(), nil)
	if resolved.Source != SourceDefault {
		t.Errorf("threshold 0.95: got source=%q, want default", resolved.Source)
	}
}

func TestHashCanonical(t *testing.T) {
	a := StageConfig{StageID: "transcribe", Params: map[string]string{"a": "1", "b": "2"}, Source: SourcePredicted}
	b := StageConfig{StageID: "transcribe", Params: map[string]string{"b": "2", "a": "1"}, Source: SourceOverride}
	if a.Hash() != b.Hash() {
		t.Error("equal params must hash equally regardless of source and insertion order")
	}

	c := StageConfig{StageID: "transcribe", Params: map[string]string{"a": "1", "b": "3"}}
	if a.Hash() == c.Hash() {
		t.Error("different params must hash differently")
	}

	d := StageConfig{StageID: "align", Params: map[string]string{"a": "1", "b": "2"}}
	if a.Hash() == d.Hash() {
		t.Error("different stage ids must hash differently")
	}
}
