package daemon

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"reelforge/internal/api"
	"reelforge/internal/history"
	"reelforge/internal/project"
	"reelforge/internal/scene"
	"reelforge/internal/services"
	"reelforge/internal/transcode"
)

// maxDescriptorBytes caps descriptor request bodies.
const maxDescriptorBytes = 1 << 20

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.daemon.Status(r.Context())
	startedAt := ""
	if !st.StartedAt.IsZero() {
		startedAt = st.StartedAt.UTC().Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:       st.Running,
		PID:           st.PID,
		StartedAt:     startedAt,
		Projects:      api.PhaseCounts(st.Projects),
		HistoryDBPath: st.HistoryDBPath,
		LockFilePath:  st.LockFilePath,
		Dependencies:  api.FromDependencies(st.Dependencies),
		Checks:        api.FromChecks(st.Checks),
		Host:          api.FromHost(st.Host),
	})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	ledger := s.daemon.history
	if ledger == nil {
		s.writeJSON(w, http.StatusOK, api.FromHistory(nil, history.Summary{}))
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "history", "limit must be a non-negative integer", err))
			return
		}
		limit = n
	}
	projectID := strings.TrimSpace(r.URL.Query().Get("project"))
	attempts, err := ledger.ListAttempts(r.Context(), projectID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := ledger.Summarize(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromHistory(attempts, summary))
}

func (s *apiServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxDescriptorBytes+1))
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "create project", "read descriptor", err))
		return
	}
	if len(data) > maxDescriptorBytes {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "create project", fmt.Sprintf("descriptor exceeds %d bytes", maxDescriptorBytes), nil))
		return
	}
	desc, err := scene.Parse(data, descriptorFormat(r.Header.Get("Content-Type")), s.daemon.defaults)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.daemon.registry.Create(r.Context(), desc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/projects/"+st.ID)
	s.writeJSON(w, http.StatusCreated, api.FromStatus(st))
}

func descriptorFormat(contentType string) scene.Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return scene.FormatAuto
	}
	switch {
	case strings.Contains(mediaType, "yaml"):
		return scene.FormatYAML
	case strings.HasSuffix(mediaType, "json"):
		return scene.FormatJSON
	default:
		return scene.FormatAuto
	}
}

func (s *apiServer) handleListProjects(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.ProjectListResponse{Items: api.FromStatuses(s.daemon.registry.List())})
}

func (s *apiServer) handleGetProject(w http.ResponseWriter, r *http.Request) {
	st, err := s.daemon.registry.Status(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStatus(st))
}

func (s *apiServer) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.registry.Evict(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	up := project.Upload{
		Name:        r.PathValue("name"),
		ContentType: r.Header.Get("Content-Type"),
		Size:        r.ContentLength,
		Body:        r.Body,
	}
	accepted, err := s.daemon.registry.AcceptAsset(r.Context(), id, up)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.daemon.registry.Status(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.AssetResponse{Asset: api.FromAsset(accepted), Project: api.FromStatus(st)})
}

func (s *apiServer) handleAssemble(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.daemon.assemblyContext(r.Context())
	defer cancel()
	result, err := s.daemon.registry.Assemble(ctx, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromResult(result))
}

func (s *apiServer) handlePlan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	plan, missing, err := s.daemon.registry.Plan(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	settings := s.daemon.settings
	output := filepath.Join(settings.OutputDir, id+".mp4")
	args := transcode.BuildArgs(plan, settings, output)
	s.writeJSON(w, http.StatusOK, api.FromPlan(id, plan, missing, args, transcode.CommandLine(settings.Binary, args)))
}

func (s *apiServer) handleOutput(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := s.daemon.registry.Status(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if st.State != project.StateCompleted || st.OutputPath == "" {
		s.writeError(w, r, fmt.Errorf("%w: %q has no rendered output (phase %s)", project.ErrNotReady, id, st.Phase))
		return
	}
	f, err := os.Open(st.OutputPath)
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "output", "rendered file is gone", err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(st.OutputPath)))
	http.ServeContent(w, r, filepath.Base(st.OutputPath), info.ModTime(), f)
}
