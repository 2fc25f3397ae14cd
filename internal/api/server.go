// Package api provides the HTTP transport for dfcache (C8): a chi
// router exposing dataset store/query/summarize/render/list/delete
// operations over the manager facade.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
)

// Manager is the narrow facade surface the HTTP layer needs. Satisfied
// by *manager.Manager.
type Manager interface {
	Store(ctx context.Context, t domain.Table, ttlSeconds *int64, tags domain.Tags) (domain.DatasetMetadata, error)
	GetMetadata(ctx context.Context, id string) (domain.DatasetMetadata, error)
	Query(ctx context.Context, id, op string, params map[string]any) (domain.QueryResult, error)
	Summarize(ctx context.Context, id string, byteBudget int, includeSample bool) (domain.Summary, error)
	FormatForDisplay(ctx context.Context, id string, byteBudget int, format string) (string, error)
	List(ctx context.Context, filter domain.Tags, limit int) ([]domain.DatasetMetadata, error)
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (domain.RegistryStats, error)
}

// HealthReporter is the narrow health-checker surface the /health route
// needs. Satisfied by *health.Checker.
type HealthReporter interface {
	IsHealthy() bool
}

// TableDecoder builds a domain.Table from a decoded JSON request body.
type TableDecoder func(records []map[string]any, columns []string) (domain.Table, error)

// Server is the dfcache HTTP API server.
type Server struct {
	cache          Manager
	decode         TableDecoder
	health         HealthReporter
	corsOrigins    []string
	metricsEnabled bool
	mcpHandler     http.Handler // MCP Gateway transport handler (nil if not set)
}

// NewServer creates a new API server over cache.
func NewServer(cache Manager, decode TableDecoder, health HealthReporter, corsOrigins []string) *Server {
	return &Server{cache: cache, decode: decode, health: health, corsOrigins: corsOrigins}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetMCPHandler mounts the MCP Gateway's Streamable HTTP transport at
// /mcp. Optional: a Server with no handler set simply doesn't serve
// that route.
func (s *Server) SetMCPHandler(h http.Handler) { s.mcpHandler = h }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/v1/datasets", func(r chi.Router) {
		r.Post("/", s.handleStore)
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGetMetadata)
		r.Delete("/{id}", s.handleDelete)
		r.Post("/{id}/query", s.handleQuery)
		r.Get("/{id}/summary", s.handleSummary)
		r.Get("/{id}/render", s.handleRender)
	})

	r.Get("/v1/stats", s.handleStats)

	if s.mcpHandler != nil {
		r.Handle("/mcp", s.mcpHandler)
	}

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── handlers ────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil && !s.health.IsHealthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type storeRequest struct {
	Records    []map[string]any `json:"records"`
	Columns    []string         `json:"columns,omitempty"`
	TTLSeconds *int64           `json:"ttl_seconds,omitempty"`
	Tags       domain.Tags      `json:"tags,omitempty"`
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, "records must not be empty")
		return
	}

	t, err := s.decode(req.Records, req.Columns)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid records: "+err.Error())
		return
	}

	meta, err := s.cache.Store(r.Context(), t, req.TTLSeconds, req.Tags)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter := domain.Tags{}
	for key, values := range r.URL.Query() {
		if !strings.HasPrefix(key, "tag.") || len(values) == 0 {
			continue
		}
		filter[strings.TrimPrefix(key, "tag.")] = values[0]
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	items, err := s.cache.List(r.Context(), filter, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	meta, err := s.cache.GetMetadata(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := s.cache.Delete(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "dataset not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type queryRequest struct {
	Operation string         `json:"operation"`
	Params    map[string]any `json:"params"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Operation == "" {
		writeError(w, http.StatusBadRequest, "operation is required")
		return
	}

	result, err := s.cache.Query(r.Context(), id, req.Operation, req.Params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	budget := queryIntParam(r, "budget", 4096)
	includeSample := r.URL.Query().Get("sample") == "true"

	summary, err := s.cache.Summarize(r.Context(), id, budget, includeSample)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	budget := queryIntParam(r, "budget", 4096)
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "table"
	}

	out, err := s.cache.FormatForDisplay(r.Context(), id, budget, format)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
	case "json":
		w.Header().Set("Content-Type", "application/json")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ─── helpers ─────────────────────────────────────────────────────────────

func queryIntParam(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
		},
	})
}

// writeDomainError maps a *domain.Error's Kind to the matching HTTP
// status, per the richer API-error shape.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindInvalidArgument:
		status = http.StatusBadRequest
	case domain.KindOutOfCapacity:
		status = http.StatusInsufficientStorage
	case domain.KindCancelled:
		status = http.StatusRequestTimeout
	case domain.KindEngineFailure, domain.KindInternal:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    domain.KindOf(err),
			"message": err.Error(),
			"details": map[string]any{},
		},
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.corsOrigins) > 0 {
			origin = strings.Join(s.corsOrigins, ", ")
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
