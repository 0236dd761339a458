package training

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"treadle/internal/decision"
	"treadle/internal/fingerprint"
	"treadle/internal/logging"
)

// Outcome is what the pipeline observed after running a stage with a chosen
// configuration.
type Outcome struct {
	Status     string             `json:"status"`
	DurationMS int64              `json:"duration_ms"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// Record is one appended feedback tuple.
type Record struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Config      decision.StageConfig    `json:"config"`
	Outcome     Outcome                 `json:"outcome"`
	JobID       string                  `json:"job_id"`
	RecordedAt  time.Time               `json:"recorded_at"`
}

// Recorder appends records to the training log. A Recorder with an empty path
// is a no-op, so wiring code never needs a nil check.
type Recorder struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewRecorder builds a recorder writing to path.
func NewRecorder(path string, logger *slog.Logger) *Recorder {
	return &Recorder{
		path:   strings.TrimSpace(path),
		logger: logging.NewComponentLogger(logger, "training"),
	}
}

// Record appends one tuple. It never returns an error and never panics;
// failures are logged and the pipeline moves on.
func (r *Recorder) Record(ctx context.Context, jobID string, fp fingerprint.Fingerprint, cfg decision.StageConfig, outcome Outcome) {
	if r == nil || r.path == "" {
		return
	}

	record := Record{
		Fingerprint: fp,
		Config:      cfg,
		Outcome:     outcome,
		JobID:       jobID,
		RecordedAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		r.logger.Warn("training record not encodable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "training_record_failed"),
		)
		return
	}
	payload = append(payload, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		r.warnWriteFailure(ctx, err)
		return
	}
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		r.warnWriteFailure(ctx, err)
		return
	}
	defer file.Close()

	// One write call per record keeps appends atomic at record granularity.
	if _, err := file.Write(payload); err != nil {
		r.warnWriteFailure(ctx, err)
	}
}

func (r *Recorder) warnWriteFailure(ctx context.Context, err error) {
	logging.WithContext(ctx, r.logger).Warn("training record dropped",
		logging.Error(err),
		logging.String(logging.FieldEventType, "training_record_failed"),
		logging.String(logging.FieldErrorHint, "check training log path and permissions"),
	)
}

// Count reads the number of records currently in the log. Used by tests and
// the CLI, never by the pipeline.
func (r *Recorder) Count() (int, error) {
	if r == nil || r.path == "" {
		return 0, nil
	}
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	count := 0
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count, nil
}
