package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"treadle/internal/services"
)

const sampleJobFile = `
media_ref = "recordings/interview.wav"
language = "EN-us"

[signals]
duration_seconds = 120.0
sample_rate = 16000
channels = 1
snr = 30.0
speaker_count = 1
complexity = 0.3

[[stages]]
id = "transcribe"
command = "treadle-transcribe"
args = ["--format", "json"]

[[stages]]
id = "diarize"
command = "treadle-diarize"
depends_on = ["transcribe"]
optional = true

[stages.fallback_outputs]
diarize = "builtin:single-speaker"

[overrides.transcribe]
model_tier = "large"
`

func writeJobFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write job file: %v", err)
	}
	return path
}

func TestLoadJobFile(t *testing.T) {
	jf, err := LoadJobFile(writeJobFile(t, sampleJobFile))
	if err != nil {
		t.Fatalf("LoadJobFile: %v", err)
	}

	job := jf.Job()
	if job.ID == "" {
		t.Error("job should get a fresh identifier")
	}
	if job.MediaRef != "recordings/interview.wav" {
		t.Errorf("media ref = %q", job.MediaRef)
	}
	if len(job.Stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(job.Stages))
	}
	if !job.Stages[1].Optional || job.Stages[1].FallbackOutputs["diarize"] != "builtin:single-speaker" {
		t.Errorf("diarize declaration = %+v", job.Stages[1])
	}
	if job.Overrides["transcribe"]["model_tier"] != "large" {
		t.Errorf("overrides = %v", job.Overrides)
	}

	probe := jf.ProbeResult()
	if probe.SampleRate != 16000 || probe.DurationSeconds != 120 {
		t.Errorf("probe = %+v", probe)
	}

	collabs := jf.Collaborators()
	if len(collabs) != 2 {
		t.Errorf("collaborators = %d, want 2", len(collabs))
	}
}

func TestLoadJobFileValidation(t *testing.T) {
	cases := map[string]string{
		"missing media_ref": `
[signals]
duration_seconds = 10.0
sample_rate = 16000
[[stages]]
id = "transcribe"
`,
		"missing stages": `
media_ref = "a.wav"
[signals]
duration_seconds = 10.0
sample_rate = 16000
`,
		"missing signals": `
media_ref = "a.wav"
[[stages]]
id = "transcribe"
`,
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadJobFile(writeJobFile(t, contents))
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestLoadJobFileMissingFile(t *testing.T) {
	_, err := LoadJobFile(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}
