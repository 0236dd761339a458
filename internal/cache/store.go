package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"treadle/internal/logging"
	"treadle/internal/services"
)

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// timestampLayout is RFC 3339 with zero-padded fractional seconds. Stored
// timestamps are always UTC, so equal-width strings order lexicographically
// and created_at can be compared in SQL.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cache_entries (
    fingerprint_hash TEXT NOT NULL,
    stage_id         TEXT NOT NULL,
    config_hash      TEXT NOT NULL,
    artifact_ref     TEXT NOT NULL,
    producer_job     TEXT NOT NULL,
    created_at       TEXT NOT NULL,
    PRIMARY KEY (fingerprint_hash, stage_id, config_hash)
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_stage ON cache_entries(stage_id);
`

// Store is the shared artifact cache. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	path   string
	lock   *flock.Flock
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[Key]chan struct{}
}

// Open initializes the cache database under dir and takes the directory's
// exclusive lock. A second open of the same directory fails rather than
// silently sharing ownership state.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("cache: directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, "cache.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("cache: acquire directory lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("cache: directory %s locked by another process", dir)
	}

	dbPath := filepath.Join(dir, "cache.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("cache: open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("cache: apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}

	return &Store{
		db:       db,
		path:     dbPath,
		lock:     lock,
		logger:   logging.NewComponentLogger(logger, "cache"),
		inflight: make(map[Key]chan struct{}),
	}, nil
}

// Close releases the database and the directory lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var dbErr error
	if s.db != nil {
		dbErr = s.db.Close()
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && dbErr == nil {
			dbErr = err
		}
	}
	return dbErr
}

// Lookup returns the entry for key, or nil when absent. Never blocks other
// keys.
func (s *Store) Lookup(ctx context.Context, key Key) (*Entry, error) {
	if !key.valid() {
		return nil, services.Wrap(services.ErrValidation, "cache", "lookup", "incomplete key", nil)
	}

	var (
		artifactRef string
		producerJob string
		createdAt   string
	)
	err := s.queryRowWithRetry(ctx,
		`SELECT artifact_ref, producer_job, created_at FROM cache_entries
         WHERE fingerprint_hash = ? AND stage_id = ? AND config_hash = ?`,
		[]any{key.FingerprintHash, key.StageID, key.ConfigHash},
		&artifactRef, &producerJob, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrCacheUnavailable, "cache", "lookup", key.String(), err)
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		ts = time.Time{}
	}
	return &Entry{Key: key, ArtifactRef: artifactRef, ProducerJob: producerJob, CreatedAt: ts}, nil
}

// Evict removes an entry. Safe to call concurrently with Lookup; evicting an
// absent key is a no-op.
func (s *Store) Evict(ctx context.Context, key Key) error {
	if !key.valid() {
		return services.Wrap(services.ErrValidation, "cache", "evict", "incomplete key", nil)
	}
	err := s.execWithRetry(ctx,
		`DELETE FROM cache_entries WHERE fingerprint_hash = ? AND stage_id = ? AND config_hash = ?`,
		key.FingerprintHash, key.StageID, key.ConfigHash,
	)
	if err != nil {
		return services.Wrap(services.ErrCacheUnavailable, "cache", "evict", key.String(), err)
	}
	return nil
}

// EvictStage removes every entry produced by stageID, regardless of
// fingerprint or configuration. Used after a collaborator version upgrade
// invalidates all of a stage's results.
func (s *Store) EvictStage(ctx context.Context, stageID string) (int64, error) {
	stageID = strings.TrimSpace(stageID)
	if stageID == "" {
		return 0, services.Wrap(services.ErrValidation, "cache", "evict stage", "empty stage id", nil)
	}
	res, err := s.execResultWithRetry(ctx, `DELETE FROM cache_entries WHERE stage_id = ?`, stageID)
	if err != nil {
		return 0, services.Wrap(services.ErrCacheUnavailable, "cache", "evict stage", stageID, err)
	}
	removed, _ := res.RowsAffected()
	s.logger.Info("evicted stage entries",
		logging.String(logging.FieldStage, stageID),
		logging.Int64("entries_removed", removed),
	)
	return removed, nil
}

// EvictExpired removes entries older than maxAge. A non-positive maxAge is a
// no-op so eviction policy stays opt-in configuration.
func (s *Store) EvictExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-maxAge).Format(timestampLayout)
	res, err := s.execResultWithRetry(ctx, `DELETE FROM cache_entries WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, services.Wrap(services.ErrCacheUnavailable, "cache", "evict expired", "", err)
	}
	removed, _ := res.RowsAffected()
	return removed, nil
}

// Entries lists all entries, newest first. Used by the CLI.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint_hash, stage_id, config_hash, artifact_ref, producer_job, created_at
         FROM cache_entries ORDER BY created_at DESC`)
	if err != nil {
		return nil, services.Wrap(services.ErrCacheUnavailable, "cache", "list", "", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var createdAt string
		if err := rows.Scan(&entry.Key.FingerprintHash, &entry.Key.StageID, &entry.Key.ConfigHash,
			&entry.ArtifactRef, &entry.ProducerJob, &createdAt); err != nil {
			return nil, services.Wrap(services.ErrCacheUnavailable, "cache", "list", "scan", err)
		}
		if ts, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			entry.CreatedAt = ts
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func (s *Store) execResultWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}

func (s *Store) queryRowWithRetry(ctx context.Context, query string, args []any, dest ...any) error {
	return retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	})
}
