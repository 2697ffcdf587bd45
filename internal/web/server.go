// Package web serves the door status pages, the occupancy heatmap and the
// JSON API.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saaga0h/doorpi/internal/doorlog"
	"github.com/saaga0h/doorpi/internal/occupancy"
	"github.com/saaga0h/doorpi/pkg/config"
	"github.com/saaga0h/doorpi/pkg/health"
)

// Estimator computes occupancy estimates
type Estimator interface {
	Estimate(ctx context.Context, location string, start, end time.Time, slots int, policy occupancy.FuturePolicy) (*occupancy.Estimation, error)
}

// StatusReader reports the current status of a door
type StatusReader interface {
	Current(ctx context.Context, location string) (doorlog.Status, error)
}

// Server is the web frontend
type Server struct {
	estimator Estimator
	status    StatusReader
	checker   *health.Checker
	cfg       *config.Config
	loc       *time.Location
	policy    occupancy.FuturePolicy
	marker    interface{}
	pages     *template.Template
	metrics   *httpMetrics
	logger    *slog.Logger
	now       func() time.Time
	handler   http.Handler
}

// NewServer builds the router. checker may be nil.
func NewServer(estimator Estimator, status StatusReader, checker *health.Checker, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	policy, err := occupancy.ParseFuturePolicy(cfg.FuturePolicy)
	if err != nil {
		return nil, err
	}

	pages, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		estimator: estimator,
		status:    status,
		checker:   checker,
		cfg:       cfg,
		loc:       cfg.Location(),
		policy:    policy,
		marker:    parseMarker(cfg.FutureMarker),
		pages:     pages,
		metrics:   newHTTPMetrics(),
		logger:    logger,
		now:       time.Now,
	}
	s.handler = s.routes()

	return s, nil
}

// Handler returns the root handler with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	router := mux.NewRouter()
	router.Use(s.requestID, s.logRequests, s.recordMetrics)

	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/text", s.handleText).Methods(http.MethodGet)
	router.HandleFunc("/embed", s.handleEmbed).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/doors/{location}/probabilities", s.handleProbabilities).Methods(http.MethodGet)
	api.HandleFunc("/doors/{location}/status", s.handleStatus).Methods(http.MethodGet)

	if s.checker != nil {
		router.HandleFunc("/health", s.checker.HandlerFunc()).Methods(http.MethodGet)
		router.HandleFunc("/health/detail", s.checker.DetailedHandlerFunc()).Methods(http.MethodGet)
	}
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	static := http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	router.PathPrefix("/static/").Handler(static)

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)
	return recovery(handlers.CompressHandler(router))
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.WebPort),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting web server", "port", s.cfg.WebPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}

	s.logger.Info("Web server stopped")
	return nil
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("Recovered from panic", "panic", fmt.Sprint(v...))
}
