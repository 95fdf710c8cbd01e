package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"i4.energy/across/powermon/inbox"
	"i4.energy/across/powermon/metrics"
	"i4.energy/across/powermon/outage"
)

const defaultMessageLimit = 50

// Monitor is the part of outage.Monitor the HTTP API drives.
type Monitor interface {
	Snapshot(ctx context.Context) (outage.Status, error)
	Deplete(ctx context.Context) (outage.Status, error)
}

// Server exposes the monitor state, the inbox and an external trigger for
// the battery depleted alert over HTTP.
type Server struct {
	Logger  *slog.Logger
	Monitor Monitor
	// Inbox is nil when the SMS listener is disabled.
	Inbox inbox.Store

	router chi.Router
}

// NewServer wires the routes.
func NewServer(logger *slog.Logger, monitor Monitor, store inbox.Store) *Server {
	s := &Server{
		Logger:  logger,
		Monitor: monitor,
		Inbox:   store,
	}

	r := chi.NewRouter()
	r.Use(metricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/events/depleted", s.handleDepleted)
	r.Get("/status", s.handleStatus)
	r.Get("/messages", s.handleMessages)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	s.sendJSON(w, ErrorResponse{Message: message}, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Failed to encode response", "error", err)
	}
}

// handleDepleted asks the monitor to send the battery depleted alert for
// the open outage.
func (s *Server) handleDepleted(w http.ResponseWriter, r *http.Request) {
	status, err := s.Monitor.Deplete(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, outage.ErrNoOutage):
		s.sendError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, outage.ErrNotRunning):
		s.sendError(w, err.Error(), http.StatusServiceUnavailable)
		return
	default:
		s.Logger.Error("Failed to trigger depleted alert", "error", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.Logger.Info("Depleted alert triggered", "started_at", status.StartedAt)
	s.sendJSON(w, status, http.StatusAccepted)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.Monitor.Snapshot(r.Context())
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, outage.ErrNotRunning) {
			code = http.StatusServiceUnavailable
		}
		s.sendError(w, err.Error(), code)
		return
	}
	s.sendJSON(w, status, http.StatusOK)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if s.Inbox == nil {
		s.sendError(w, "SMS listener is disabled", http.StatusNotFound)
		return
	}

	limit := defaultMessageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.sendError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	msgs, err := s.Inbox.List(r.Context(), limit)
	if err != nil {
		s.Logger.Error("Failed to list messages", "error", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, msgs, http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := strconv.Itoa(ww.Status())

		metrics.TotalRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(startTime).Seconds())
	})
}
