package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// ErrLimitExceeded is returned when a stream is longer than the allowed size.
var ErrLimitExceeded = errors.New("stream exceeds size limit")

// Written summarizes a completed stream write.
type Written struct {
	Size   int64
	SHA256 string
}

// WriteStream copies r into a newly created dst while hashing it. A positive
// limit caps the number of bytes accepted. dst is removed on any failure.
func WriteStream(dst string, r io.Reader, limit int64) (Written, error) {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Written{}, err
	}
	fail := func(err error) (Written, error) {
		_ = out.Close()
		_ = os.Remove(dst)
		return Written{}, err
	}

	src := r
	if limit > 0 {
		// One extra byte distinguishes "exactly limit" from "too long".
		src = io.LimitReader(r, limit+1)
	}
	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, hasher), src)
	if err != nil {
		return fail(err)
	}
	if limit > 0 && written > limit {
		return fail(fmt.Errorf("%w: more than %d bytes", ErrLimitExceeded, limit))
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return Written{}, err
	}
	return Written{Size: written, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// CopyFileVerified copies src to dst and confirms size and hash match.
// dst must not exist; it is removed on mismatch.
func CopyFileVerified(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	srcHasher := sha256.New()
	written, err := WriteStream(dst, io.TeeReader(in, srcHasher), 0)
	if err != nil {
		return err
	}
	info, err := in.Stat()
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("stat source: %w", err)
	}
	if written.Size != info.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written.Size)
	}
	if hex.EncodeToString(srcHasher.Sum(nil)) != written.SHA256 {
		_ = os.Remove(dst)
		return errors.New("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

// MoveFile renames src to dst, falling back to a verified copy when the two
// paths live on different filesystems. An existing dst is replaced.
func MoveFile(src, dst string) error {
	if src == dst {
		return nil
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("rename: %w", err)
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove existing target: %w", err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		return fmt.Errorf("copy across filesystems: %w", err)
	}
	return os.Remove(src)
}

var nameReplacer = strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "", "\"", "", "<", "", ">", "", "|", "", "\x00", "")

// SanitizeName reduces name to a single safe path element. It returns ""
// when nothing usable remains.
func SanitizeName(name string) string {
	cleaned := strings.TrimSpace(nameReplacer.Replace(strings.TrimSpace(name)))
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return ""
	}
	return filepath.Base(cleaned)
}
