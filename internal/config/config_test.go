package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize default config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Error("exists should be false for missing file")
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Predictor.ConfidenceThreshold != defaultConfidenceThreshold {
		t.Errorf("confidence threshold = %v", cfg.Predictor.ConfidenceThreshold)
	}
	if len(cfg.Predictor.TierLadder) == 0 {
		t.Error("tier ladder should default")
	}
}

func TestLoadParsesStageTables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
log_dir = "` + dir + `/logs"

[predictor]
confidence_threshold = 0.9
tier_ladder = ["base", "big"]

[stage_defaults.transcribe]
model_tier = "base"
search_width = "2"

[overrides.translate]
force = true
params = { engine = "nmt-large" }
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("exists should be true")
	}
	if cfg.Predictor.ConfidenceThreshold != 0.9 {
		t.Errorf("confidence threshold = %v", cfg.Predictor.ConfidenceThreshold)
	}
	params, ok := cfg.StageDefault("transcribe")
	if !ok || params["model_tier"] != "base" {
		t.Errorf("stage default = %v ok=%v", params, ok)
	}
	ov, ok := cfg.StageOverride("translate")
	if !ok || !ov.Force || ov.Params["engine"] != "nmt-large" {
		t.Errorf("override = %+v ok=%v", ov, ok)
	}
	if _, ok := cfg.StageOverride("transcribe"); ok {
		t.Error("transcribe should have no override")
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[predictor]
confidence_threshold = 1.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected validation error for threshold > 1")
	}
}

func TestValidateRejectsDuplicateTiers(t *testing.T) {
	cfg := Default()
	cfg.Predictor.TierLadder = []string{"small", "small"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "repeats") {
		t.Fatalf("expected duplicate tier error, got %v", err)
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err := ExpandPath("~/cache")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "cache") {
		t.Errorf("ExpandPath = %q", got)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}
