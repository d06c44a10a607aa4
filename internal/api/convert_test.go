package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"reelforge/internal/history"
	"reelforge/internal/project"
)

func TestFromStatusDefaultsAndRender(t *testing.T) {
	created := time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.FixedZone("x", 3600))
	st := project.Status{
		ID:         "p1",
		Phase:      project.PhaseAssembling,
		State:      project.StateAssembling,
		Uploaded:   2,
		Required:   2,
		Percentage: 100,
		CreatedAt:  created,
		Render:     &project.RenderProgress{Percent: 42.5, OutTime: 1500 * time.Millisecond, Speed: 2},
	}
	dto := FromStatus(st)
	if dto.Missing == nil {
		t.Fatal("missing must encode as an empty list")
	}
	if dto.CreatedAt != "2026-03-04T04:06:07.008Z" {
		t.Fatalf("unexpected timestamp %q", dto.CreatedAt)
	}
	if dto.UpdatedAt != "" {
		t.Fatalf("zero time should be omitted, got %q", dto.UpdatedAt)
	}
	if dto.Render == nil || dto.Render.OutTimeSeconds != 1.5 || dto.Render.Percent != 42.5 {
		t.Fatalf("unexpected render %+v", dto.Render)
	}

	raw, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"canAssemble":false`, `"missing":[]`, `"phase":"assembling"`} {
		if !strings.Contains(string(raw), key) {
			t.Fatalf("payload %s missing %s", raw, key)
		}
	}
}

func TestFromHistory(t *testing.T) {
	finished := time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)
	attempts := []history.Attempt{
		{ID: 2, ProjectID: "p", State: history.AttemptFailed, StartedAt: finished.Add(-time.Minute), FinishedAt: &finished, ErrorKind: "external_tool", Elapsed: 90 * time.Second},
		{ID: 1, ProjectID: "p", State: history.AttemptRunning, StartedAt: finished.Add(-time.Hour)},
	}
	resp := FromHistory(attempts, history.Summary{Projects: 1, Attempts: 2, Running: 1, Failed: 1})
	if len(resp.Attempts) != 2 || resp.Summary.Attempts != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Attempts[0].FinishedAt == "" || resp.Attempts[0].ElapsedSeconds != 90 {
		t.Fatalf("unexpected first attempt %+v", resp.Attempts[0])
	}
	if resp.Attempts[1].FinishedAt != "" {
		t.Fatalf("running attempt should have no finish time, got %q", resp.Attempts[1].FinishedAt)
	}
}

func TestPhaseCounts(t *testing.T) {
	counts := PhaseCounts([]project.Status{
		{Phase: project.PhaseReady},
		{Phase: project.PhaseReady},
		{Phase: project.PhaseFailed},
	})
	if counts["ready"] != 2 || counts["failed"] != 1 || len(counts) != 2 {
		t.Fatalf("unexpected counts %v", counts)
	}
}
