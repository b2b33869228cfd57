package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecastcli/internal/config"
	apierrors "forecastcli/internal/errors"
	"forecastcli/internal/services"
	ws "forecastcli/internal/websocket"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Simulation.DefaultTrials = 100
	cfg.Simulation.MaxTrials = 1000
	// the Prometheus exporter registers globally; keep tests off it
	cfg.Telemetry.EnableMetrics = false
	cfg.Telemetry.EnableTracing = false
	cfg.Security.RateLimit.Enabled = false
	return cfg
}

func newTestApplication(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	application, err := NewApplication(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return application
}

func TestNewApplicationRequiresConfig(t *testing.T) {
	_, err := NewApplication(nil, nil)
	assert.Error(t, err)
}

func TestRouter(t *testing.T) {
	application := newTestApplication(t, testConfig())

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantType   string
	}{
		{"health", http.MethodGet, "/api/health", "", http.StatusOK, ""},
		{"default parameters", http.MethodGet, "/api/v1/parameters/default", "", http.StatusOK, ""},
		{"run", http.MethodPost, "/api/v1/simulations", `{"trials": 50}`, http.StatusCreated, ""},
		{"unknown route", http.MethodGet, "/api/nope", "", http.StatusNotFound, apierrors.TypeNotFound},
		{"wrong method", http.MethodDelete, "/api/health", "", http.StatusMethodNotAllowed, apierrors.TypeMethodNotAllowed},
		{"metrics disabled", http.MethodGet, "/metrics", "", http.StatusNotFound, apierrors.TypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			rec := httptest.NewRecorder()
			application.Router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			if tt.wantType != "" {
				var problem map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
				assert.Equal(t, tt.wantType, problem["type"])
			}
		})
	}
}

func TestRouterRejectsFormBodies(t *testing.T) {
	application := newTestApplication(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/simulations", strings.NewReader("trials=5"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	application.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouterRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	application := newTestApplication(t, cfg)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		application.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRunServesAndBroadcasts(t *testing.T) {
	application := newTestApplication(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	require.Eventually(t, func() bool { return application.Addr() != "" }, 5*time.Second, 10*time.Millisecond)
	base := "http://" + application.Addr()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+application.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	readType := func() ws.Message {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg ws.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}
	assert.Equal(t, ws.TypeConnection, readType().Type)

	resp, err := http.Post(base+"/api/v1/simulations", "application/json", strings.NewReader(`{"trials": 20, "seed": 3}`))
	require.NoError(t, err)
	var record map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&record))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, services.EventRunStarted, readType().Type)
	completed := readType()
	assert.Equal(t, services.EventRunCompleted, completed.Type)
	data, ok := completed.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, record["id"], data["id"])

	resp, err = http.Get(base + "/api/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestStartFailsOnBusyPort(t *testing.T) {
	first := newTestApplication(t, testConfig())
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop(context.Background())

	cfg := testConfig()
	cfg.Server.Port = first.listener.Addr().(*net.TCPAddr).Port
	second := newTestApplication(t, cfg)
	assert.Error(t, second.Start(context.Background()))
}
