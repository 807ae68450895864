// Package server exposes the daemon's ops surface: health, metrics, run lookups
// and path submission over HTTP, plus the gRPC health service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/docintake/internal/async"
	"github.com/joseph-ayodele/docintake/internal/llm"
	"github.com/joseph-ayodele/docintake/internal/repository"
)

// RunStore is the read side of the run archive.
type RunStore interface {
	Get(ctx context.Context, id uuid.UUID) (*repository.RunRecord, error)
	ListFailed(ctx context.Context, since time.Time) ([]*repository.RunRecord, error)
}

type Deps struct {
	Runs     RunStore // nil when the archive is disabled
	Queue    async.Queue
	Health   func(ctx context.Context) error
	Gatherer prometheus.Gatherer
}

type Server struct {
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{deps: deps, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	r.Post("/ingest", s.ingest)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/failed", s.listFailed)
		r.Get("/{id}", s.getRun)
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			s.logger.Warn("server.healthz.failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	Path   string `json:"path"`
	Schema string `json:"schema"`
	Force  bool   `json:"force"`
}

// ingest queues a path that is already visible to the daemon.
func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	schema := llm.SchemaName(strings.TrimSpace(req.Schema))
	if schema != "" {
		if _, err := llm.Lookup(schema); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	err := s.deps.Queue.Enqueue(r.Context(), async.Job{Path: path, Schema: schema, Force: req.Force})
	switch {
	case errors.Is(err, async.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.logger.Error("server.ingest.failed", "path", path, "err", err)
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}
	s.logger.Info("server.ingest.queued", "path", path, "schema", schema)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "path": path})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run archive disabled")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a UUID")
		return
	}
	rec, err := s.deps.Runs.Get(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case err != nil:
		s.logger.Error("server.run.get.failed", "run_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, toRunView(rec))
}

// listFailed returns failed runs since ?since=RFC3339 (default: last 24h).
func (s *Server) listFailed(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run archive disabled")
		return
	}
	since := time.Now().Add(-24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = t
	}
	recs, err := s.deps.Runs.ListFailed(r.Context(), since)
	if err != nil {
		s.logger.Error("server.run.list_failed", "err", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	out := make([]runView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRunView(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

type runView struct {
	ID                       string   `json:"id"`
	Path                     string   `json:"path"`
	Status                   string   `json:"status"`
	Reason                   string   `json:"reason,omitempty"`
	Schema                   string   `json:"schema,omitempty"`
	DocumentType             string   `json:"document_type,omitempty"`
	ClassificationConfidence float64  `json:"classification_confidence"`
	Confidence               float64  `json:"confidence"`
	Quality                  float64  `json:"quality"`
	Mapped                   string   `json:"mapped,omitempty"`
	Errors                   []string `json:"errors,omitempty"`
	Warnings                 []string `json:"warnings,omitempty"`
	FinishedAt               string   `json:"finished_at,omitempty"`
	ElapsedMS                int64    `json:"elapsed_ms"`
}

func toRunView(rec *repository.RunRecord) runView {
	v := runView{
		ID:                       rec.ID.String(),
		Path:                     rec.Path,
		Status:                   rec.Status,
		Reason:                   rec.Reason,
		Schema:                   rec.Schema,
		DocumentType:             rec.DocumentType,
		ClassificationConfidence: rec.ClassificationConfidence,
		Confidence:               rec.Confidence,
		Quality:                  rec.Quality,
		Mapped:                   rec.EntityKind,
		Errors:                   rec.Errors,
		Warnings:                 rec.Warnings,
		ElapsedMS:                rec.Elapsed.Milliseconds(),
	}
	if !rec.FinishedAt.IsZero() {
		v.FinishedAt = rec.FinishedAt.Format(time.RFC3339Nano)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
