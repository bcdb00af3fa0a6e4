package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path (and parents) holding size bytes. The content is
// seeded from the file name so distinct names hash differently. A size <= 0
// writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	seed := []byte(filepath.Base(path))
	data := make([]byte, size)
	for i := range data {
		data[i] = seed[i%len(seed)]
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteBytes writes content to path, creating parent directories.
func WriteBytes(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
