package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/saaga0h/doorpi/pkg/mqtt"
	"github.com/saaga0h/doorpi/pkg/postgres"
)

// Pinger is any dependency that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// schemaReporter is implemented by postgres.Client
type schemaReporter interface {
	HealthCheck(ctx context.Context) (*postgres.HealthStatus, error)
}

// Checker provides health check functionality for agents
type Checker struct {
	mqtt     mqtt.Client
	redis    Pinger
	postgres Pinger
	timeout  time.Duration
	logger   *slog.Logger
}

// NewChecker creates a new health checker with the given dependencies.
// Any dependency may be nil when the binary does not use it.
func NewChecker(mqttClient mqtt.Client, redisClient, postgresClient Pinger, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:     mqttClient,
		redis:    redisClient,
		postgres: postgresClient,
		timeout:  2 * time.Second,
		logger:   logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     string    `json:"timestamp"`
	Services      *Services `json:"services,omitempty"`
	SchemaVersion int64     `json:"schema_version,omitempty"`
}

// Services represents the status of external dependencies
type Services struct {
	Redis    string `json:"redis,omitempty"`
	MQTT     string `json:"mqtt,omitempty"`
	Postgres string `json:"postgres,omitempty"`
}

// HandlerFunc returns a liveness handler that does not touch dependencies
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.write(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// DetailedHandlerFunc returns a handler that checks every configured
// dependency and answers 503 when any of them is down.
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		services := &Services{}
		healthy := true
		var schemaVersion int64

		if h.mqtt != nil {
			services.MQTT = "connected"
			if !h.mqtt.IsConnected() {
				services.MQTT = "disconnected"
				healthy = false
			}
		}
		if h.redis != nil {
			services.Redis = h.ping(ctx, "redis", h.redis)
			healthy = healthy && services.Redis == "connected"
		}
		if h.postgres != nil {
			services.Postgres = h.ping(ctx, "postgres", h.postgres)
			healthy = healthy && services.Postgres == "connected"
			if rep, ok := h.postgres.(schemaReporter); ok && services.Postgres == "connected" {
				schemaVersion = h.schemaVersion(ctx, rep)
			}
		}

		status := "healthy"
		statusCode := http.StatusOK
		if !healthy {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		h.write(w, statusCode, HealthResponse{
			Status:        status,
			Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
			Services:      services,
			SchemaVersion: schemaVersion,
		})
	}
}

func (h *Checker) ping(ctx context.Context, name string, p Pinger) string {
	if err := p.Ping(ctx); err != nil {
		h.logger.Warn("Health check failed", "service", name, "error", err)
		return "disconnected"
	}
	return "connected"
}

func (h *Checker) schemaVersion(ctx context.Context, rep schemaReporter) int64 {
	status, err := rep.HealthCheck(ctx)
	if err != nil {
		h.logger.Warn("Schema version check failed", "error", err)
		return 0
	}
	if status.Error != "" {
		h.logger.Warn("Schema version check failed", "error", status.Error)
	}
	return status.SchemaVersion
}

func (h *Checker) write(w http.ResponseWriter, code int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
