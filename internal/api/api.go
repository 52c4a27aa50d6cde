// Package api serves stored scan runs and picks over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/flooorgang/floorline/internal/logger"
	"github.com/flooorgang/floorline/internal/metrics"
	"github.com/flooorgang/floorline/internal/models"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// Store is the read side of storage the API needs.
type Store interface {
	Ping(ctx context.Context) error
	ListRuns(ctx context.Context, limit int) ([]models.ScanRun, error)
	PicksByDate(ctx context.Context, date time.Time, unscoredOnly bool) ([]models.Pick, error)
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	store    Store
	location *time.Location
	now      func() time.Time
}

// NewHandler creates a handler. Dates without an explicit query parameter
// default to today in location.
func NewHandler(store Store, location *time.Location) *Handler {
	if location == nil {
		location = time.Local
	}
	return &Handler{store: store, location: location, now: time.Now}
}

// NewRouter wires middleware and routes.
func NewRouter(h *Handler, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(instrument)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/runs", h.GetRuns)
		r.Get("/picks", h.GetPicks)
	})

	return r
}

// HealthCheck reports whether storage is reachable.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "storage unhealthy", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.now().UTC(),
	})
}

// GetRuns lists recent scan runs, newest first.
// Query params: limit
func (h *Handler) GetRuns(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit := parseIntParam(r, "limit", defaultRunLimit)
	if limit <= 0 {
		limit = defaultRunLimit
	}
	if limit > maxRunLimit {
		limit = maxRunLimit
	}

	runs, err := h.store.ListRuns(ctx, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to retrieve runs", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
		"limit": limit,
	})
}

// GetPicks lists the picks of a scan date.
// Query params: date (YYYY-MM-DD, default today), unscored (true|false)
func (h *Handler) GetPicks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	date := models.CalendarDay(h.now(), h.location)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", nil)
			return
		}
		date = parsed
	}
	unscored, _ := strconv.ParseBool(r.URL.Query().Get("unscored"))

	picks, err := h.store.PicksByDate(ctx, date, unscored)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to retrieve picks", err)
		return
	}

	hits, misses := 0, 0
	for _, p := range picks {
		switch p.Result {
		case models.ResultHit:
			hits++
		case models.ResultMiss:
			misses++
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":   date.Format("2006-01-02"),
		"picks":  picks,
		"count":  len(picks),
		"hits":   hits,
		"misses": misses,
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		logger.Error("%s: %v", message, err)
	}
	respondJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

// instrument logs each request at debug level and records it by route.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.ObserveRequest(r.Method, route, ww.Status(), elapsed)
		logger.Debug("%s %s %d %v", r.Method, r.URL.Path, ww.Status(), elapsed.Round(time.Millisecond))
	})
}
