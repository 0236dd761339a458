package pipeline

import (
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"treadle/internal/fingerprint"
	"treadle/internal/services"
	"treadle/internal/stage"
)

// JobFile is the on-disk description of a job: the media input, its measured
// signals, and the stage commands to run. Signal measurement happens outside
// this system, so the file carries the probe results directly.
type JobFile struct {
	MediaRef  string                       `toml:"media_ref"`
	Language  string                       `toml:"language"`
	Signals   JobSignals                   `toml:"signals"`
	Stages    []JobStage                   `toml:"stages"`
	Overrides map[string]map[string]string `toml:"overrides"`
}

// JobSignals mirrors the probe measurements for the media input.
type JobSignals struct {
	DurationSeconds float64 `toml:"duration_seconds"`
	SampleRate      int     `toml:"sample_rate"`
	Channels        int     `toml:"channels"`
	SNR             float64 `toml:"snr"`
	SpeakerCount    int     `toml:"speaker_count"`
	Complexity      float64 `toml:"complexity"`
}

// JobStage declares one stage and the command that implements it.
type JobStage struct {
	ID              string            `toml:"id"`
	Command         string            `toml:"command"`
	Args            []string          `toml:"args"`
	DependsOn       []string          `toml:"depends_on"`
	Optional        bool              `toml:"optional"`
	FallbackOutputs map[string]string `toml:"fallback_outputs"`
}

// LoadJobFile parses and validates a job file.
func LoadJobFile(path string) (*JobFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "load job file", path, err)
	}
	var jf JobFile
	if err := toml.Unmarshal(raw, &jf); err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "parse job file", path, err)
	}
	if strings.TrimSpace(jf.MediaRef) == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "parse job file",
			"media_ref is required", nil)
	}
	if len(jf.Stages) == 0 {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "parse job file",
			"at least one [[stages]] entry is required", nil)
	}
	if jf.Signals.SampleRate <= 0 || jf.Signals.DurationSeconds <= 0 {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "parse job file",
			"[signals] must carry the probe measurements (duration_seconds, sample_rate, ...)", nil)
	}
	return &jf, nil
}

// Job converts the file into a runnable job with a fresh identifier.
func (jf *JobFile) Job() Job {
	decls := make([]stage.Declaration, 0, len(jf.Stages))
	for _, s := range jf.Stages {
		decls = append(decls, stage.Declaration{
			ID:              s.ID,
			DependsOn:       s.DependsOn,
			Optional:        s.Optional,
			FallbackOutputs: s.FallbackOutputs,
		})
	}
	job := NewJob(jf.MediaRef, jf.Language, decls)
	job.Overrides = jf.Overrides
	return job
}

// ProbeResult exposes the declared signals as a probe measurement.
func (jf *JobFile) ProbeResult() fingerprint.ProbeResult {
	return fingerprint.ProbeResult{
		DurationSeconds: jf.Signals.DurationSeconds,
		SampleRate:      jf.Signals.SampleRate,
		Channels:        jf.Signals.Channels,
		SNR:             jf.Signals.SNR,
		SpeakerCount:    jf.Signals.SpeakerCount,
		Complexity:      jf.Signals.Complexity,
	}
}

// Collaborators builds exec collaborators for every stage that names a
// command. Stages without one stay unregistered and fail preflight unless
// they are optional.
func (jf *JobFile) Collaborators() map[string]stage.Collaborator {
	out := make(map[string]stage.Collaborator, len(jf.Stages))
	for _, s := range jf.Stages {
		if strings.TrimSpace(s.Command) == "" {
			continue
		}
		out[s.ID] = stage.NewExecCollaborator(s.Command, s.Args...)
	}
	return out
}
