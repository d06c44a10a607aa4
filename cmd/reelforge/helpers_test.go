package main

import (
	"path/filepath"
	"reflect"
	"testing"

	"reelforge/internal/testsupport"
)

func TestBuildPhaseRowsOrdersLifecycle(t *testing.T) {
	rows := buildPhaseRows(map[string]int{"failed": 1, "collecting": 2, "completed": 0, "zombie": 1, "created": 3})
	want := [][]string{{"Created", "3"}, {"Collecting", "2"}, {"Failed", "1"}, {"Zombie", "1"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

func TestDeclaredContentType(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "real.png")
	writePNG(t, png)
	fake := filepath.Join(dir, "voice.mp3")
	testsupport.WriteFile(t, fake, 32)

	if got := declaredContentType("real.png", png); got != "image/png" {
		t.Fatalf("sniffed png: got %q", got)
	}
	if got := declaredContentType("voice.mp3", fake); got != "audio/mpeg" {
		t.Fatalf("extension fallback: got %q", got)
	}
	if got := declaredContentType("notes.txt", fake); got != "" {
		t.Fatalf("unsupported extension: got %q", got)
	}
}

func TestRelativeTimeFallsBack(t *testing.T) {
	if got := relativeTime(""); got != "-" {
		t.Fatalf("empty: %q", got)
	}
	if got := relativeTime("yesterday"); got != "yesterday" {
		t.Fatalf("unparseable: %q", got)
	}
}

func TestServerURLRewritesWildcardBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = "0.0.0.0:7490"
	empty := ""
	ctx := newCommandContext(&empty, &empty, &empty, &empty)
	if got := ctx.serverURL(cfg); got != "http://127.0.0.1:7490" {
		t.Fatalf("serverURL = %q", got)
	}
	server := "http://render-box:9000/"
	ctx = newCommandContext(&empty, &empty, &server, &empty)
	if got := ctx.serverURL(cfg); got != "http://render-box:9000" {
		t.Fatalf("serverURL with flag = %q", got)
	}
}
