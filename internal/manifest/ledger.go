package manifest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Ledger writes one job's manifest. The owning orchestrator is the sole
// writer; methods are still mutex-guarded so misuse fails safe rather than
// interleaving lines.
type Ledger struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	sealed bool
}

var errSealed = errors.New("manifest already sealed")

// Create opens a new manifest for jobID under dir and writes the header line.
func Create(dir, jobID, mediaRef, fingerprintHash string) (*Ledger, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("manifest: directory required")
	}
	if strings.TrimSpace(jobID) == "" {
		return nil, errors.New("manifest: job id required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("manifest: create directory: %w", err)
	}

	path := filepath.Join(dir, jobID+".manifest.jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("manifest: create %s: %w", path, err)
	}

	ledger := &Ledger{file: file, path: path}
	header := manifestLine{
		Kind:        kindHeader,
		JobID:       jobID,
		MediaRef:    mediaRef,
		Fingerprint: fingerprintHash,
		StartedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := ledger.writeLine(header); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return ledger, nil
}

// Path returns the manifest file location.
func (l *Ledger) Path() string {
	return l.path
}

// Append records one stage attempt. Called exactly once per attempt,
// including failed ones.
func (l *Ledger) Append(record StageRecord) error {
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	return l.writeLine(manifestLine{Kind: kindStage, Stage: &record})
}

// Seal closes the manifest with the job outcome. Further appends fail.
func (l *Ledger) Seal(outcome string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sealed {
		return errSealed
	}
	line := manifestLine{
		Kind:     kindSeal,
		Outcome:  outcome,
		SealedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := l.writeLineLocked(line); err != nil {
		return err
	}
	l.sealed = true
	err := l.file.Sync()
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func (l *Ledger) writeLine(line manifestLine) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sealed {
		return errSealed
	}
	return l.writeLineLocked(line)
}

func (l *Ledger) writeLineLocked(line manifestLine) error {
	payload, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("manifest: encode line: %w", err)
	}
	payload = append(payload, '\n')
	if _, err := l.file.Write(payload); err != nil {
		return fmt.Errorf("manifest: append: %w", err)
	}
	return nil
}

// Replay reads a manifest back, tolerating a missing seal so partially
// completed jobs can be inspected and resumed.
func Replay(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer file.Close()

	result := &Manifest{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var line manifestLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return nil, fmt.Errorf("manifest: parse line %d: %w", lineNo, err)
		}
		switch line.Kind {
		case kindHeader:
			result.JobID = line.JobID
			result.MediaRef = line.MediaRef
			result.Fingerprint = line.Fingerprint
		case kindStage:
			if line.Stage != nil {
				result.Records = append(result.Records, *line.Stage)
			}
		case kindSeal:
			result.Outcome = line.Outcome
			result.Sealed = true
		default:
			return nil, fmt.Errorf("manifest: unknown line kind %q at line %d", line.Kind, lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("manifest: read: %w", err)
	}
	if result.JobID == "" {
		return nil, errors.New("manifest: missing header")
	}
	return result, nil
}
