package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"brain-orchestrator/internal/domain/ports/repository"
	"brain-orchestrator/internal/infra/redis"
	"brain-orchestrator/internal/usecase"
)

// Server exposes the polling surface for web clients (their outbox) plus a
// small read-only view over goal tracking and incidents, and the operational
// endpoints.
type Server struct {
	outbox    *redis.WebOutbox
	goals     usecase.GoalTracker
	incidents repository.IncidentStore
	auth      *AuthManager
	log       *zerolog.Logger

	httpSrv *http.Server
}

func NewServer(outbox *redis.WebOutbox, goals usecase.GoalTracker, incidents repository.IncidentStore, jwtSecret string, port int, logger *zerolog.Logger) *Server {
	s := &Server{
		outbox:    outbox,
		goals:     goals,
		incidents: incidents,
		auth:      NewAuthManager(jwtSecret),
		log:       logger,
	}
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLog)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Get("/outbox", s.handleOutbox)
		r.Get("/goals/stats", s.handleGoalStats)
		r.Get("/goals/issues", s.handleGoalIssues)
		r.Get("/incidents", s.handleIncidents)
	})
	return r
}

// handleOutbox drains the caller's pending messages. The user identity comes
// from the token subject, never from the request, so one user cannot drain
// another's outbox.
func (s *Server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	userID := SubjectFrom(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	msgs, err := s.outbox.Drain(r.Context(), userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("outbox drain failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"messages": msgs,
	})
}

func (s *Server) handleGoalStats(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	stats, err := s.goals.Stats(r.Context(), days)
	if err != nil {
		s.log.Error().Err(err).Msg("goal stats query failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGoalIssues(w http.ResponseWriter, r *http.Request) {
	userID := SubjectFrom(r.Context())
	limit := queryInt(r, "limit", 20)
	issues, err := s.goals.IssuesForUser(r.Context(), userID, limit)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("goal issues query failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	ids, err := s.incidents.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("incident listing failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"incidents": ids,
	})
}

// Handler exposes the routed handler for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start runs the HTTP server until ListenAndServe returns.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("web server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
