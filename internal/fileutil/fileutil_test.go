package fileutil

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteStreamHashesContent(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.bin")
	written, err := WriteStream(dst, strings.NewReader("hello world"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if written.Size != 11 {
		t.Fatalf("size = %d, want 11", written.Size)
	}
	const want = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if written.SHA256 != want {
		t.Fatalf("sha = %s, want %s", written.SHA256, want)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "hello world" {
		t.Fatalf("unexpected file contents %q err=%v", data, err)
	}
}

func TestWriteStreamLimit(t *testing.T) {
	dir := t.TempDir()
	exact := filepath.Join(dir, "exact.bin")
	if _, err := WriteStream(exact, bytes.NewReader(make([]byte, 8)), 8); err != nil {
		t.Fatalf("exact limit should pass: %v", err)
	}

	over := filepath.Join(dir, "over.bin")
	_, err := WriteStream(over, bytes.NewReader(make([]byte, 9)), 8)
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	if _, err := os.Stat(over); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("partial file should be removed, stat err=%v", err)
	}
}

func TestWriteStreamRefusesExisting(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "taken.bin")
	if err := os.WriteFile(dst, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteStream(dst, strings.NewReader("y"), 0); !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dst := filepath.Join(dir, "dst.mp4")
	content := bytes.Repeat([]byte("frame"), 1024)
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("content mismatch after verified copy")
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp4")
	dst := filepath.Join(dir, "b.mp4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := MoveFile(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source should be gone, stat err=%v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "video" {
		t.Fatalf("dst = %q, want video", got)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"photo.png":        "photo.png",
		"../../etc/passwd": "-..-etc-passwd",
		"a:b?.mp3":         "a-b.mp3",
		"  ..  ":           "",
		"":                 "",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
