package cache

import (
	"strings"
	"time"

	"treadle/internal/decision"
)

// Key identifies one cached artifact. Two invocations with equal keys are
// equivalent and skippable.
type Key struct {
	FingerprintHash string
	StageID         string
	ConfigHash      string
}

// NewKey derives the cache key for a stage invocation.
func NewKey(fingerprintHash string, cfg decision.StageConfig) Key {
	return Key{
		FingerprintHash: fingerprintHash,
		StageID:         cfg.StageID,
		ConfigHash:      cfg.Hash(),
	}
}

// String renders the key for logs and manifests. Hashes are abbreviated; the
// full triple stays in the database columns.
func (k Key) String() string {
	return strings.Join([]string{short(k.FingerprintHash), k.StageID, short(k.ConfigHash)}, "/")
}

func (k Key) valid() bool {
	return k.FingerprintHash != "" && k.StageID != "" && k.ConfigHash != ""
}

func short(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}

// Entry is a published cache record. Read-only after creation.
type Entry struct {
	Key         Key
	ArtifactRef string
	ProducerJob string
	CreatedAt   time.Time
}
