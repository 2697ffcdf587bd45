package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/doorpi/pkg/mqtt"
	"github.com/saaga0h/doorpi/pkg/mqtt/mqtttest"
	"github.com/saaga0h/doorpi/pkg/postgres"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func okPing(context.Context) error { return nil }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandlerFunc(t *testing.T) {
	h := NewChecker(nil, nil, nil, discard())

	rec := httptest.NewRecorder()
	h.HandlerFunc()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Services)
}

func TestDetailedHandlerFunc(t *testing.T) {
	connected := mqtttest.New()
	require.NoError(t, connected.Connect(context.Background()))

	tests := []struct {
		name       string
		mqtt       *mqtttest.Fake
		redis      Pinger
		postgres   Pinger
		wantCode   int
		wantStatus string
		want       Services
	}{
		{
			name:       "all up",
			mqtt:       connected,
			redis:      pingFunc(okPing),
			postgres:   pingFunc(okPing),
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			want:       Services{MQTT: "connected", Redis: "connected", Postgres: "connected"},
		},
		{
			name:       "postgres down",
			redis:      pingFunc(okPing),
			postgres:   pingFunc(func(context.Context) error { return errors.New("refused") }),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			want:       Services{Redis: "connected", Postgres: "disconnected"},
		},
		{
			name:       "mqtt disconnected",
			mqtt:       mqtttest.New(),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			want:       Services{MQTT: "disconnected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m mqtt.Client
			if tt.mqtt != nil {
				m = tt.mqtt
			}
			h := NewChecker(m, tt.redis, tt.postgres, discard())

			rec := httptest.NewRecorder()
			h.DetailedHandlerFunc()(rec, httptest.NewRequest(http.MethodGet, "/health/detail", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			require.NotNil(t, resp.Services)
			assert.Equal(t, tt.want, *resp.Services)
		})
	}
}

type versionedDB struct {
	version int64
}

func (versionedDB) Ping(context.Context) error { return nil }

func (v versionedDB) HealthCheck(context.Context) (*postgres.HealthStatus, error) {
	return &postgres.HealthStatus{Connected: true, SchemaVersion: v.version}, nil
}

func TestDetailedHandlerFunc_SchemaVersion(t *testing.T) {
	h := NewChecker(nil, nil, versionedDB{version: 1}, discard())

	rec := httptest.NewRecorder()
	h.DetailedHandlerFunc()(rec, httptest.NewRequest(http.MethodGet, "/health/detail", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.SchemaVersion)
	assert.Equal(t, "connected", resp.Services.Postgres)
}
