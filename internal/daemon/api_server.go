package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"reelforge/internal/api"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/services"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	limiter *rate.Limiter
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	if cfg.API.UploadRate > 0 {
		burst := max(cfg.API.UploadBurst, 1)
		srv.limiter = rate.NewLimiter(rate.Limit(cfg.API.UploadRate), burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/history", srv.handleHistory)
	mux.HandleFunc("POST /api/projects", srv.handleCreateProject)
	mux.HandleFunc("GET /api/projects", srv.handleListProjects)
	mux.HandleFunc("GET /api/projects/{id}", srv.handleGetProject)
	mux.HandleFunc("DELETE /api/projects/{id}", srv.handleDeleteProject)
	mux.HandleFunc("PUT /api/projects/{id}/assets/{name}", srv.rateLimited(srv.handleUploadAsset))
	mux.HandleFunc("POST /api/projects/{id}/assemble", srv.handleAssemble)
	mux.HandleFunc("GET /api/projects/{id}/plan", srv.handlePlan)
	mux.HandleFunc("GET /api/projects/{id}/output", srv.handleOutput)

	srv.handler = requestIDMiddleware(srv.authMiddleware(cfg.Paths.APIToken, mux))
	srv.server = &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) listen() error {
	if s.bind == "" {
		return services.Wrap(services.ErrConfiguration, "daemon", "listen", "paths.api_bind is empty", nil)
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("api server not listening")
	}
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.ErrorWithContext(s.logger, "api server error", "api_server_failed", logging.Error(err))
		return err
	}
	return nil
}

func (s *apiServer) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			s.writeStatus(w, r, http.StatusTooManyRequests, "rate_limited", errors.New("upload rate limit exceeded"))
			return
		}
		next(w, r)
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeError maps err to its HTTP status through the services markers.
func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "api_request_failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeStatus(w, r, status, services.Kind(err), err)
}

func (s *apiServer) writeStatus(w http.ResponseWriter, r *http.Request, status int, kind string, err error) {
	requestID, _ := services.RequestIDFromContext(r.Context())
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: kind, RequestID: requestID})
}
