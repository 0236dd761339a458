package cache

import (
	"context"
	"sync"
	"time"

	"treadle/internal/logging"
	"treadle/internal/services"
)

// Lease is held by the single caller responsible for computing a key. Every
// lease must end in exactly one Publish or Release; Release after Publish is
// a harmless no-op so callers can defer it.
type Lease struct {
	store *Store
	key   Key

	once sync.Once
}

// Acquire implements acquire-or-wait. On a hit the entry is returned with a
// nil lease. Otherwise the caller either becomes the owner (non-nil lease) or
// blocks until the current owner publishes or releases, then re-checks. A
// released owner's waiters are re-admitted so one of them can take over;
// this loop is what keeps waiters from hanging on a cancelled producer.
func (s *Store) Acquire(ctx context.Context, key Key) (*Lease, *Entry, error) {
	if !key.valid() {
		return nil, nil, services.Wrap(services.ErrValidation, "cache", "acquire", "incomplete key", nil)
	}

	for {
		entry, err := s.Lookup(ctx, key)
		if err != nil {
			return nil, nil, err
		}
		if entry != nil {
			return nil, entry, nil
		}

		s.mu.Lock()
		done, busy := s.inflight[key]
		if !busy {
			done = make(chan struct{})
			s.inflight[key] = done
			s.mu.Unlock()
			return s.confirmOwnership(ctx, &Lease{store: s, key: key})
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-done:
			// Owner finished one way or the other; loop to re-check.
		}
	}
}

// confirmOwnership re-checks the table after winning the inflight slot. The
// initial lookup can miss while a previous owner's insert is committing; by
// the time this caller reaches the slot that owner has published and
// released, and nothing marks the key busy anymore. Without the re-check the
// late caller would recompute a published key and manufacture a key conflict
// against its own store.
func (s *Store) confirmOwnership(ctx context.Context, lease *Lease) (*Lease, *Entry, error) {
	entry, err := s.Lookup(ctx, lease.key)
	if err != nil {
		lease.Release()
		return nil, nil, err
	}
	if entry != nil {
		lease.Release()
		return nil, entry, nil
	}
	return lease, nil, nil
}

// Publish stores the computed artifact reference and releases waiters. A
// pre-existing entry holding a different artifact is a KeyConflict: two
// producers computed divergent content for one key, which owner discipline
// should have made impossible.
func (l *Lease) Publish(ctx context.Context, artifactRef, producerJob string) error {
	existing, err := l.store.Lookup(ctx, l.key)
	if err != nil {
		l.Release()
		return err
	}
	if existing != nil {
		l.Release()
		if existing.ArtifactRef == artifactRef {
			return nil
		}
		l.store.logger.Error("divergent artifact for cache key",
			logging.String(logging.FieldEventType, "cache_key_conflict"),
			logging.String(logging.FieldCacheKey, l.key.String()),
			logging.String("existing_artifact", existing.ArtifactRef),
			logging.String("new_artifact", artifactRef),
			logging.String(logging.FieldErrorHint, "evict the key and re-run to recompute"),
		)
		return services.Wrap(services.ErrKeyConflict, "cache", "publish", l.key.String(), nil)
	}

	now := time.Now().UTC().Format(timestampLayout)
	if err := l.store.execWithRetry(ctx,
		`INSERT INTO cache_entries (fingerprint_hash, stage_id, config_hash, artifact_ref, producer_job, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		l.key.FingerprintHash, l.key.StageID, l.key.ConfigHash, artifactRef, producerJob, now,
	); err != nil {
		l.Release()
		return services.Wrap(services.ErrCacheUnavailable, "cache", "publish", l.key.String(), err)
	}

	l.Release()
	l.store.logger.Debug("cache entry published",
		logging.String(logging.FieldCacheKey, l.key.String()),
		logging.String("artifact_ref", artifactRef),
		logging.String(logging.FieldJobID, producerJob),
	)
	return nil
}

// Release gives up ownership without publishing, waking all waiters so one
// of them can become the owner. Idempotent.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.store.mu.Lock()
		done, ok := l.store.inflight[l.key]
		if ok {
			delete(l.store.inflight, l.key)
		}
		l.store.mu.Unlock()
		if ok {
			close(done)
		}
	})
}
