// Package http exposes the importer's operational surface: liveness,
// import progress, and Prometheus metrics.
package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusSource reports live import counters.
type StatusSource interface {
	Progress() (imported, errored int64)
}

type Handler struct {
	db     *sql.DB
	status StatusSource
	log    *slog.Logger
}

func NewHandler(db *sql.DB, status StatusSource, log *slog.Logger) *Handler {
	return &Handler{db: db, status: status, log: log}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.handleHealth)
	r.Get("/status", h.handleStatus)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		// Memory-backed runs have no database to probe.
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		h.log.Warn("health check failed", "error", err)
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	imported, errored := h.status.Progress()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{
		"imported": imported,
		"errored":  errored,
	})
}
