package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// PNGMagic is the eight-byte PNG signature, enough for content sniffing.
var PNGMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

// WriteFile fills path with size bytes of a repeating pattern, creating
// parent directories. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}
	for remaining := size; remaining > 0; {
		n := min(remaining, int64(chunkSize))
		if _, err := f.Write(buf[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= n
	}
}

// WriteAssets creates one small fixture per name under dir and returns dir.
func WriteAssets(t testing.TB, dir string, names ...string) string {
	t.Helper()
	for _, name := range names {
		WriteFile(t, filepath.Join(dir, name), 64)
	}
	return dir
}
