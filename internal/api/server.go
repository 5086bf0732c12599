// Package api exposes the research pipeline over HTTP so other services
// can embed DeepStalk without shelling out to the CLI.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/IshaanNene/DeepStalk/internal/config"
	"github.com/IshaanNene/DeepStalk/internal/observability"
	"github.com/IshaanNene/DeepStalk/internal/types"
)

// RunOptions are the per-request overrides a caller may send alongside
// the query. Zero values mean "use the server's configuration".
type RunOptions struct {
	MaxInitialResults  int `json:"max_initial_results,omitempty"`
	MaxLevel2PerPage   int `json:"max_level2_per_page,omitempty"`
	MaxTotalPages      int `json:"max_total_pages,omitempty"`
	OverallDeadlineSec int `json:"overall_deadline_sec,omitempty"`
}

// Researcher runs one research query to completion. The server holds the
// pipeline behind this seat so tests can substitute a canned one.
type Researcher interface {
	Research(ctx context.Context, query string, opts *RunOptions) (*types.ResearchResult, error)
}

// Server is the HTTP front of the research pipeline.
type Server struct {
	mux        *http.ServeMux
	port       int
	logger     *slog.Logger
	researcher Researcher
	metrics    *observability.Metrics
}

// NewServer creates an API server listening on the given port once
// started.
func NewServer(port int, logger *slog.Logger) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		port:   port,
		logger: logger.With("component", "api_server"),
	}
	s.registerRoutes()
	return s
}

// SetResearcher sets the pipeline implementation behind POST /api/research.
func (s *Server) SetResearcher(r Researcher) {
	s.researcher = r
}

// SetMetrics attaches the registry served by GET /api/stats.
func (s *Server) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// Handler returns the server's routing handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the HTTP listener in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, s.mux); err != nil {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/research", s.handleResearch)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	if s.researcher == nil {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"error": "research pipeline not initialized"})
		return
	}

	var body struct {
		Query string `json:"query"`
		RunOptions
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	body.Query = strings.TrimSpace(body.Query)
	if body.Query == "" {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "query must not be empty"})
		return
	}

	start := time.Now()
	s.logger.Info("research request", "query", body.Query, "remote", r.RemoteAddr)

	result, err := s.researcher.Research(r.Context(), body.Query, &body.RunOptions)
	if err != nil {
		s.logger.Error("research request failed", "query", body.Query, "error", err)
		s.jsonResponse(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	s.logger.Info("research request complete",
		"query", body.Query,
		"pages", result.TotalPagesCrawled,
		"elapsed", time.Since(start),
	)
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"error": "metrics not enabled"})
		return
	}
	s.jsonResponse(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
