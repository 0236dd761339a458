package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteMedia creates a placeholder media file of the requested size so paths
// under test exist and are non-empty. A size <= 0 writes a single byte.
func WriteMedia(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte('a' + i%26)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
