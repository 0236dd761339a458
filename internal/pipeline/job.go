package pipeline

import (
	"github.com/google/uuid"

	"treadle/internal/stage"
)

// Job describes one unit of work: a media reference and the stages to run
// over it. Overrides carry operator-supplied parameters keyed by stage ID;
// they outrank every other decision source.
type Job struct {
	ID        string
	MediaRef  string
	Language  string
	Stages    []stage.Declaration
	Overrides map[string]map[string]string
}

// NewJob constructs a job with a fresh identifier.
func NewJob(mediaRef, language string, stages []stage.Declaration) Job {
	return Job{
		ID:       uuid.NewString(),
		MediaRef: mediaRef,
		Language: language,
		Stages:   stages,
	}
}
