package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netocloud/slack-relay/internal/biz/domain"
	"github.com/netocloud/slack-relay/internal/biz/repo"
	"github.com/netocloud/slack-relay/internal/biz/usecase"
	"github.com/netocloud/slack-relay/internal/metrics"
	"github.com/netocloud/slack-relay/internal/service"
)

// maxBodyBytes bounds a webhook body; Slack event payloads are far smaller
const maxBodyBytes = 1 << 20

// DeliveryHandler handles one verified-or-not webhook delivery
type DeliveryHandler interface {
	HandleDelivery(ctx context.Context, d domain.InboundDelivery) service.Ack
}

// Dependencies reported by /health
type Dependencies struct {
	Warehouse  repo.TurnRepo
	Completion repo.CompletionRepo
	Messaging  repo.MessageRepo
}

// Server is the relay's HTTP surface: webhook intake, health and metrics
type Server struct {
	events DeliveryHandler
	deps   Dependencies
	logger *slog.Logger

	server *http.Server
	port   int
}

// NewServer creates a new HTTP server
func NewServer(events DeliveryHandler, deps Dependencies, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		events: events,
		deps:   deps,
		logger: logger.With(slog.String("component", "http")),
		port:   port,
	}
}

// Handler builds the routed handler
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Post("/slack/events", s.handleEvents)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", slog.Int("port", s.port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server, waiting for in-flight deliveries until ctx ends
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	// The signature covers the exact bytes, so the body is read raw
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
			return
		}
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	ack := s.events.HandleDelivery(r.Context(), domain.InboundDelivery{
		Body:       body,
		Signature:  r.Header.Get(usecase.HeaderSignature),
		Timestamp:  r.Header.Get(usecase.HeaderTimestamp),
		ReceivedAt: time.Now(),
	})
	s.writeJSON(w, ack.StatusCode, ack.Body)
}

type healthResponse struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Services: map[string]bool{
			"warehouse":          s.deps.Warehouse != nil && s.deps.Warehouse.Available(),
			"completion_api":     s.deps.Completion != nil,
			"messaging_platform": s.deps.Messaging != nil,
		},
	})
}

// instrument records request count and latency per route pattern
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		metrics.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(code)).Inc()
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to write response", slog.Any("error", err))
	}
}
