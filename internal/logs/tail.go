package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CurrentFile is the name of the link the daemon keeps pointed at its active log.
const CurrentFile = "reelforged.log"

const (
	defaultPoll  = 250 * time.Millisecond
	maxLineBytes = 1024 * 1024
)

// CurrentPath returns the active daemon log inside logDir.
func CurrentPath(logDir string) string {
	return filepath.Join(logDir, CurrentFile)
}

// Options controls Follow.
type Options struct {
	// Lines is the number of trailing lines emitted before following. Zero
	// starts at the end of the file.
	Lines  int
	Follow bool
	Poll   time.Duration
	// Filter drops lines for which it returns false. Nil keeps every line.
	Filter func(string) bool
}

// MatchProject keeps lines tagged with the project id in either the console
// ("[id]") or JSON ("project_id":"id") format.
func MatchProject(id string) func(string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	console := "[" + id + "]"
	structured := fmt.Sprintf("%q:%q", "project_id", id)
	return func(line string) bool {
		return strings.Contains(line, console) || strings.Contains(line, structured)
	}
}

// Last returns up to n trailing lines of path and the offset of the end of
// the file. A missing file yields no lines and offset 0.
func Last(path string, n int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if n <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]string, n)
	count, idx := 0, 0
	end, err := scan(file, func(line string) {
		ring[idx] = line
		idx = (idx + 1) % n
		if count < n {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, count)
	if count == n {
		for i := range count {
			lines[i] = ring[(idx+i)%n]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, end, nil
}

// ReadFrom returns the complete lines written after offset and the offset
// that follows them. An offset beyond the end of the file (truncation or a
// repointed link) restarts at zero.
func ReadFrom(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	reader := bufio.NewReaderSize(file, 64*1024)
	next := offset
	for {
		chunk, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// A partial trailing line is picked up on the next read.
				break
			}
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		next += int64(len(chunk))
		lines = append(lines, strings.TrimRight(chunk, "\r\n"))
	}
	return lines, next, nil
}

// Follow emits the trailing lines of path and, when opts.Follow is set, keeps
// emitting appended lines until ctx is done. Cancellation is not an error.
func Follow(ctx context.Context, path string, opts Options, emit func(string)) error {
	if emit == nil {
		return errors.New("logs: emit callback is required")
	}
	keep := opts.Filter
	if keep == nil {
		keep = func(string) bool { return true }
	}

	initial, offset, err := Last(path, opts.Lines)
	if err != nil {
		return err
	}
	for _, line := range initial {
		if keep(line) {
			emit(line)
		}
	}
	if !opts.Follow {
		return nil
	}

	poll := opts.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		lines, next, err := ReadFrom(path, offset)
		if err != nil {
			return err
		}
		offset = next
		for _, line := range lines {
			if keep(line) {
				emit(line)
			}
		}
	}
}

func scan(file *os.File, fn func(string)) (int64, error) {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read log file: %w", err)
	}
	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	return end, nil
}
