package testsupport

import (
	"testing"

	"treadle/internal/cache"
	"treadle/internal/config"
	"treadle/internal/logging"
)

// MustOpenStore opens a cache.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *cache.Store {
	t.Helper()

	store, err := cache.Open(cfg.Cache.Dir, logging.NewNop())
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
