package transcode

import (
	"strconv"
	"strings"
	"time"
)

// Progress is one snapshot from ffmpeg's -progress stream.
type Progress struct {
	OutTime time.Duration
	// Percent is 0..100 relative to the planned duration, or -1 when the
	// planned duration is unknown.
	Percent float64
	Speed   float64
	Frame   int64
	Done    bool
}

// progressParser accumulates key=value lines until a progress= terminator.
type progressParser struct {
	total   time.Duration
	current Progress
}

func newProgressParser(total time.Duration) *progressParser {
	return &progressParser{total: total}
}

// feed consumes one line. It returns a snapshot when a block completes and
// reports whether the line belonged to the progress protocol at all.
func (p *progressParser) feed(line string) (Progress, bool, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || key == "" || strings.ContainsAny(key, " \t") {
		return Progress{}, false, false
	}
	value = strings.TrimSpace(value)
	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports microseconds under both keys.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			p.current.OutTime = time.Duration(us) * time.Microsecond
		}
	case "frame":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.current.Frame = n
		}
	case "speed":
		if s, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
			p.current.Speed = s
		}
	case "progress":
		snapshot := p.current
		snapshot.Done = value == "end"
		snapshot.Percent = p.percent(snapshot)
		return snapshot, true, true
	case "fps", "bitrate", "total_size", "out_time", "dup_frames", "drop_frames", "stream_0_0_q":
	default:
		if !strings.HasPrefix(key, "stream_") {
			return Progress{}, false, false
		}
	}
	return Progress{}, false, true
}

func (p *progressParser) percent(snapshot Progress) float64 {
	if snapshot.Done {
		return 100
	}
	if p.total <= 0 {
		return -1
	}
	pct := float64(snapshot.OutTime) / float64(p.total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// tail keeps the last n diagnostic lines.
type tail struct {
	max   int
	lines []string
}

func newTail(n int) *tail {
	if n <= 0 {
		n = 1
	}
	return &tail{max: n}
}

func (t *tail) add(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	if len(t.lines) == t.max {
		copy(t.lines, t.lines[1:])
		t.lines = t.lines[:t.max-1]
	}
	t.lines = append(t.lines, line)
}

func (t *tail) snapshot() []string {
	return append([]string(nil), t.lines...)
}
