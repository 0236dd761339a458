package manifest

import (
	"os"
	"strings"
	"testing"

	"treadle/internal/decision"
)

func stageRecord(stageID string, status Status, cacheKey string) StageRecord {
	rec := StageRecord{
		StageID:  stageID,
		Inputs:   []string{"media.mkv"},
		Config:   decision.StageConfig{StageID: stageID, Params: map[string]string{"model_tier": "small"}, Source: decision.SourceDefault},
		CacheKey: cacheKey,
		Status:   status,
	}
	if status == StatusFailed || status == StatusDegraded {
		rec.Error = "collaborator exploded"
	}
	return rec
}

func TestLedgerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ledger, err := Create(dir, "job-1", "media.mkv", "fp-hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	records := []StageRecord{
		stageRecord("extract_audio", StatusCompleted, "key-a"),
		stageRecord("transcribe", StatusSkipped, "key-b"),
		stageRecord("translate", StatusDegraded, ""),
		stageRecord("remux", StatusFailed, ""),
	}
	for _, rec := range records {
		if err := ledger.Append(rec); err != nil {
			t.Fatalf("Append %s: %v", rec.StageID, err)
		}
	}
	if err := ledger.Seal("failed"); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	replayed, err := Replay(ledger.Path())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed.JobID != "job-1" || replayed.MediaRef != "media.mkv" || replayed.Fingerprint != "fp-hash" {
		t.Errorf("header = %+v", replayed)
	}
	if !replayed.Sealed || replayed.Outcome != "failed" {
		t.Errorf("seal = sealed=%v outcome=%q", replayed.Sealed, replayed.Outcome)
	}
	if len(replayed.Records) != len(records) {
		t.Fatalf("records = %d, want %d", len(replayed.Records), len(records))
	}
	for i, rec := range replayed.Records {
		if rec.StageID != records[i].StageID {
			t.Errorf("record %d out of order: %q", i, rec.StageID)
		}
	}
	if replayed.Records[3].Error == "" {
		t.Error("failed record must carry its error")
	}
}

func TestLedgerOneLinePerRecord(t *testing.T) {
	dir := t.TempDir()
	ledger, err := Create(dir, "job-2", "media.mkv", "fp")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = ledger.Append(stageRecord("transcribe", StatusCompleted, "key"))
	if err := ledger.Seal("completed"); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	raw, err := os.ReadFile(ledger.Path())
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("line count = %d, want header + stage + seal", len(lines))
	}
	for i, line := range lines {
		if strings.Contains(line, "\n") || !strings.HasPrefix(line, "{") {
			t.Errorf("line %d is not a single JSON object: %q", i, line)
		}
	}
}

func TestAppendAfterSealFails(t *testing.T) {
	ledger, err := Create(t.TempDir(), "job-3", "media.mkv", "fp")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ledger.Seal("completed"); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := ledger.Append(stageRecord("transcribe", StatusCompleted, "")); err == nil {
		t.Fatal("append after seal should fail")
	}
	if err := ledger.Seal("completed"); err == nil {
		t.Fatal("double seal should fail")
	}
}

func TestCreateRefusesDuplicateJob(t *testing.T) {
	dir := t.TempDir()
	if _, err := Create(dir, "job-4", "media.mkv", "fp"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := Create(dir, "job-4", "media.mkv", "fp"); err == nil {
		t.Fatal("second manifest for same job id should fail")
	}
}

func TestReplayUnsealedManifest(t *testing.T) {
	ledger, err := Create(t.TempDir(), "job-5", "media.mkv", "fp")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = ledger.Append(stageRecord("extract_audio", StatusCompleted, "key-a"))
	_ = ledger.Append(stageRecord("transcribe", StatusFailed, "key-b"))

	replayed, err := Replay(ledger.Path())
	if err != nil {
		t.Fatalf("Replay of unsealed manifest: %v", err)
	}
	if replayed.Sealed {
		t.Error("manifest should not report sealed")
	}
	keys := replayed.CompletedKeys()
	if len(keys) != 1 || keys[0] != "key-a" {
		t.Errorf("CompletedKeys = %v, want [key-a]", keys)
	}
}

func TestCompletedKeysIncludesSkipped(t *testing.T) {
	m := &Manifest{Records: []StageRecord{
		stageRecord("a", StatusCompleted, "k1"),
		stageRecord("b", StatusSkipped, "k2"),
		stageRecord("c", StatusDegraded, "k3"),
		stageRecord("d", StatusFailed, "k4"),
	}}
	keys := m.CompletedKeys()
	if len(keys) != 2 || keys[0] != "k1" || keys[1] != "k2" {
		t.Fatalf("CompletedKeys = %v", keys)
	}
}
