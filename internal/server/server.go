// Package server exposes the search engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matsen/reviewsearch/internal/search"
	"github.com/matsen/reviewsearch/internal/semantic"
)

// Searcher is the part of search.Engine the handlers need.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]search.Result, error)
	Similar(id int64, k int) ([]search.Result, error)
	Info() search.Info
	ModelName() string
}

// SearchResponse is the body of /search and /reviews/{id}/similar.
type SearchResponse struct {
	Query      string          `json:"query,omitempty"`
	ReviewID   *int64          `json:"review_id,omitempty"`
	K          int             `json:"k"`
	Model      string          `json:"model"`
	Results    []search.Result `json:"results"`
	Total      int             `json:"total"`
	DurationMs int64           `json:"duration_ms"`
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	search.Info
}

// ProblemDetails is an RFC 7807 error body.
type ProblemDetails struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler serves search requests.
type Handler struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewHandler creates a handler for searcher.
func NewHandler(searcher Searcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{searcher: searcher, logger: logger}
}

// Routes returns the router for all endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", h.Health)
	r.Get("/search", h.Search)
	r.Get("/reviews/{id}/similar", h.Similar)

	return r
}

// New builds an http.Server listening on addr.
func New(addr string, searcher Searcher, logger *slog.Logger) *http.Server {
	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 30 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         addr,
		Handler:      NewHandler(searcher, logger).Routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Info: h.searcher.Info()})
}

// Search handles GET /search?q=...&k=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	k, ok := h.parseK(w, r)
	if !ok {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	results, err := h.searcher.Search(r.Context(), query, k)
	if err != nil {
		if errors.Is(err, search.ErrInvalidK) {
			h.respondError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		h.logger.Error("search failed", "query", query, "error", err)
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "search failed")
		return
	}

	h.respondJSON(w, http.StatusOK, h.envelope(query, nil, k, results, start))
}

// Similar handles GET /reviews/{id}/similar?k=...
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Bad Request", "review id must be an integer")
		return
	}
	k, ok := h.parseK(w, r)
	if !ok {
		return
	}

	results, err := h.searcher.Similar(id, k)
	if err != nil {
		switch {
		case errors.Is(err, semantic.ErrReviewNotIndexed):
			h.respondError(w, http.StatusNotFound, "Not Found", err.Error())
		case errors.Is(err, search.ErrInvalidK):
			h.respondError(w, http.StatusBadRequest, "Bad Request", err.Error())
		default:
			h.logger.Error("similar failed", "review_id", id, "error", err)
			h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "similar search failed")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, h.envelope("", &id, k, results, start))
}

// parseK reads the k query parameter, writing a 400 when it is not a
// positive integer. An absent k means search.DefaultK.
func (h *Handler) parseK(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("k")
	if raw == "" {
		return search.DefaultK, true
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k < 1 {
		h.respondError(w, http.StatusBadRequest, "Bad Request", "k must be a positive integer")
		return 0, false
	}
	return min(k, search.MaxK), true
}

func (h *Handler) envelope(query string, id *int64, k int, results []search.Result, start time.Time) SearchResponse {
	if results == nil {
		results = []search.Result{}
	}
	return SearchResponse{
		Query:      query,
		ReviewID:   id,
		K:          k,
		Model:      h.searcher.ModelName(),
		Results:    results,
		Total:      len(results),
		DurationMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	problem := ProblemDetails{Type: "about:blank", Title: title, Status: status, Detail: detail}
	if err := json.NewEncoder(w).Encode(problem); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

// logRequests writes one access log line per request.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
