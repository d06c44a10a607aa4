package api

import (
	"time"

	"reelforge/internal/deps"
	"reelforge/internal/filtergraph"
	"reelforge/internal/history"
	"reelforge/internal/preflight"
	"reelforge/internal/project"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromStatus converts a registry status to its API representation.
func FromStatus(st project.Status) ProjectStatus {
	dto := ProjectStatus{
		ID:          st.ID,
		Phase:       string(st.Phase),
		State:       string(st.State),
		Uploaded:    st.Uploaded,
		Required:    st.Required,
		Percentage:  st.Percentage,
		Missing:     st.Missing,
		CanAssemble: st.CanAssemble,
		OutputPath:  st.OutputPath,
		LastError:   st.LastError,
		CreatedAt:   formatTime(st.CreatedAt),
		UpdatedAt:   formatTime(st.UpdatedAt),
	}
	if dto.Missing == nil {
		dto.Missing = []string{}
	}
	if st.Render != nil {
		dto.Render = &RenderProgress{
			Percent:        st.Render.Percent,
			OutTimeSeconds: st.Render.OutTime.Seconds(),
			Speed:          st.Render.Speed,
		}
	}
	return dto
}

// FromStatuses converts a status slice, never returning nil.
func FromStatuses(items []project.Status) []ProjectStatus {
	out := make([]ProjectStatus, 0, len(items))
	for _, st := range items {
		out = append(out, FromStatus(st))
	}
	return out
}

// FromAsset converts an accepted asset.
func FromAsset(a project.Asset) Asset {
	return Asset{
		Name:        a.Name,
		Size:        a.Size,
		ContentType: a.ContentType,
		Category:    string(a.Category),
		SHA256:      a.SHA256,
		UploadedAt:  formatTime(a.UploadedAt),
	}
}

// FromResult converts an assembly result.
func FromResult(r project.Result) AssembleResponse {
	return AssembleResponse{
		ProjectID:       r.ProjectID,
		OutputPath:      r.OutputPath,
		Size:            r.Size,
		ElapsedSeconds:  r.Elapsed.Seconds(),
		DurationSeconds: r.Duration,
	}
}

// FromPlan converts a synthesized plan plus the invocation that would run it.
func FromPlan(projectID string, plan filtergraph.Plan, missing []string, args []string, commandLine string) PlanResponse {
	dto := PlanResponse{
		ProjectID:     projectID,
		Missing:       missing,
		Inputs:        make([]PlanInput, 0, len(plan.Inputs)),
		FilterComplex: plan.FilterComplex,
		VideoLabel:    plan.VideoLabel,
		AudioLabel:    plan.AudioLabel,
		TotalSeconds:  plan.TotalDuration,
		Resolution:    plan.Resolution.String(),
		Args:          args,
		CommandLine:   commandLine,
	}
	if dto.Missing == nil {
		dto.Missing = []string{}
	}
	for _, in := range plan.Inputs {
		dto.Inputs = append(dto.Inputs, PlanInput{
			Index:           in.Index,
			Name:            in.Name,
			Path:            in.Path,
			Looped:          in.LoopedImage,
			DurationSeconds: in.Duration,
		})
	}
	return dto
}

// FromAttempt converts a ledger attempt.
func FromAttempt(a history.Attempt) Attempt {
	dto := Attempt{
		ID:             a.ID,
		ProjectID:      a.ProjectID,
		State:          string(a.State),
		StartedAt:      formatTime(a.StartedAt),
		OutputPath:     a.OutputPath,
		OutputBytes:    a.OutputBytes,
		ErrorKind:      a.ErrorKind,
		ErrorMessage:   a.ErrorMessage,
		Diagnostics:    a.Diagnostics,
		ElapsedSeconds: a.Elapsed.Seconds(),
	}
	if a.FinishedAt != nil {
		dto.FinishedAt = formatTime(*a.FinishedAt)
	}
	return dto
}

// FromHistory converts recent attempts and the ledger summary.
func FromHistory(attempts []history.Attempt, summary history.Summary) HistoryResponse {
	out := HistoryResponse{
		Attempts: make([]Attempt, 0, len(attempts)),
		Summary: HistorySummary{
			Projects:  summary.Projects,
			Attempts:  summary.Attempts,
			Running:   summary.Running,
			Completed: summary.Completed,
			Failed:    summary.Failed,
		},
	}
	for _, a := range attempts {
		out.Attempts = append(out.Attempts, FromAttempt(a))
	}
	return out
}

// FromDependencies converts dependency statuses.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// FromHost converts a host snapshot.
func FromHost(h preflight.HostSnapshot) HostStatus {
	return HostStatus{
		Hostname:      h.Hostname,
		Platform:      h.Platform,
		UptimeSeconds: int64(h.Uptime.Seconds()),
		LogicalCPUs:   h.LogicalCPUs,
		MemoryTotal:   h.MemoryTotal,
		MemoryUsedPct: h.MemoryUsedPct,
		WorkDirFree:   h.WorkDirFree,
		OutputDirFree: h.OutputDirFree,
	}
}

// PhaseCounts tallies projects by reported phase.
func PhaseCounts(items []project.Status) map[string]int {
	counts := make(map[string]int)
	for _, st := range items {
		counts[string(st.Phase)]++
	}
	return counts
}
