package training

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"treadle/internal/decision"
	"treadle/internal/fingerprint"
)

func testTuple() (fingerprint.Fingerprint, decision.StageConfig, Outcome) {
	fp := fingerprint.Fingerprint{DurationSeconds: 120, SampleRate: 16000, Channels: 1, SNR: 30, SpeakerCount: 1, Complexity: 0.3, Language: "en"}
	cfg := decision.StageConfig{StageID: "transcribe", Params: map[string]string{"model_tier": "small"}, Source: decision.SourcePredicted}
	outcome := Outcome{Status: "completed", DurationMS: 4200, Metrics: map[string]float64{"wer_estimate": 0.08}}
	return fp, cfg, outcome
}

func TestRecordAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training", "decisions.jsonl")
	recorder := NewRecorder(path, nil)

	fp, cfg, outcome := testTuple()
	recorder.Record(context.Background(), "job-1", fp, cfg, outcome)
	recorder.Record(context.Background(), "job-1", fp, cfg, outcome)

	count, err := recorder.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	first := strings.SplitN(string(raw), "\n", 2)[0]
	var decoded Record
	if err := json.Unmarshal([]byte(first), &decoded); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if decoded.Config.StageID != "transcribe" || decoded.Outcome.Status != "completed" {
		t.Errorf("record = %+v", decoded)
	}
	if decoded.Fingerprint.Hash() != fp.Hash() {
		t.Error("fingerprint did not round-trip")
	}
}

func TestRecordNeverFailsCaller(t *testing.T) {
	// A path that cannot be created: parent is a file.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	recorder := NewRecorder(filepath.Join(blocker, "log.jsonl"), nil)

	fp, cfg, outcome := testTuple()
	recorder.Record(context.Background(), "job-1", fp, cfg, outcome) // must not panic or error
}

func TestEmptyPathIsNoop(t *testing.T) {
	recorder := NewRecorder("", nil)
	fp, cfg, outcome := testTuple()
	recorder.Record(context.Background(), "job-1", fp, cfg, outcome)
	if count, err := recorder.Count(); err != nil || count != 0 {
		t.Fatalf("count = %d err=%v, want no-op", count, err)
	}
}

func TestConcurrentAppendsKeepRecordsWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	recorder := NewRecorder(path, nil)
	fp, cfg, outcome := testTuple()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorder.Record(context.Background(), "job-n", fp, cfg, outcome)
		}()
	}
	wg.Wait()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 20 {
		t.Fatalf("lines = %d, want 20", len(lines))
	}
	for i, line := range lines {
		var decoded Record
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
		}
	}
}
