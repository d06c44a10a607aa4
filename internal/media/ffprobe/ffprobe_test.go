package ffprobe

import (
	"context"
	"errors"
	"math"
	"testing"
)

const sampleReport = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1280, "height": 720},
    {"index": 1, "codec_name": "aac", "codec_type": "audio"}
  ],
  "format": {"filename": "out.mp4", "format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "9.000000", "size": "12345"}
}`

func fixedRun(output string, err error) (RunFunc, *[]string) {
	var seen []string
	return func(_ context.Context, binary string, args []string) ([]byte, error) {
		seen = append([]string{binary}, args...)
		return []byte(output), err
	}, &seen
}

func TestInspectDecodesReport(t *testing.T) {
	run, seen := fixedRun(sampleReport, nil)
	prober := New("", run)
	result, err := prober.Inspect(context.Background(), "/tmp/out.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if (*seen)[0] != "ffprobe" || (*seen)[len(*seen)-1] != "/tmp/out.mp4" {
		t.Fatalf("unexpected invocation %v", *seen)
	}
	if result.StreamCount("video") != 1 || result.StreamCount("audio") != 1 {
		t.Fatalf("unexpected stream counts in %+v", result.Streams)
	}
	if result.DurationSeconds() != 9 {
		t.Fatalf("duration = %v", result.DurationSeconds())
	}
	if w, h, ok := result.Dimensions(); !ok || w != 1280 || h != 720 {
		t.Fatalf("dimensions = %dx%d ok=%v", w, h, ok)
	}
}

func TestVerifyVideoRequiresVideoStream(t *testing.T) {
	run, _ := fixedRun(`{"streams":[{"codec_type":"audio"}],"format":{}}`, nil)
	err := New("ffprobe", run).VerifyVideo(context.Background(), "/tmp/a.mp4")
	if !errors.Is(err, ErrNoVideoStream) {
		t.Fatalf("expected ErrNoVideoStream, got %v", err)
	}
}

func TestInspectPropagatesErrors(t *testing.T) {
	run, _ := fixedRun("", errors.New("exit status 1"))
	if _, err := New("ffprobe", run).Inspect(context.Background(), "/tmp/a.mp4"); err == nil {
		t.Fatal("expected run error")
	}
	run, _ = fixedRun("not json", nil)
	if _, err := New("ffprobe", run).Inspect(context.Background(), "/tmp/a.mp4"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := New("ffprobe", run).Inspect(context.Background(), " "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestDurationSecondsInvalid(t *testing.T) {
	if d := (Result{Format: Format{Duration: "bad"}}).DurationSeconds(); !math.IsNaN(d) {
		t.Fatalf("expected NaN, got %v", d)
	}
	if d := (Result{}).DurationSeconds(); d != 0 {
		t.Fatalf("expected 0, got %v", d)
	}
}
