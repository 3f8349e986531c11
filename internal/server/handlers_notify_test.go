package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starts-with-effort/dandd-realtime/internal/config"
	"github.com/starts-with-effort/dandd-realtime/internal/hub"
)

// recordingNotifier captures hook invocations.
type recordingNotifier struct {
	mu         sync.Mutex
	orders     []string
	orderLines []string
}

func (r *recordingNotifier) NotifyOrderCreated(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, orderID)
}

func (r *recordingNotifier) NotifyOrderLineUpdated(orderLineID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orderLines = append(r.orderLines, orderLineID)
}

func newAPITestServer(t *testing.T) (*Server, *recordingNotifier) {
	t.Helper()

	cfg := &config.Config{
		Port:            "0",
		AuthGracePeriod: time.Second,
		SendBufferSize:  16,
		MaxConnections:  10,
	}
	h := hub.New(clockwork.NewRealClock(), cfg.MaxConnections, cfg.SendBufferSize)
	t.Cleanup(h.Stop)

	notifier := &recordingNotifier{}
	return NewServer(cfg, h, notifier, fakeValidator{}, nil, nil), notifier
}

func TestNotifyOrderCreatedEndpoint(t *testing.T) {
	srv, notifier := newAPITestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/internal/notify/pedido-creado/P001", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"P001"}, notifier.orders)
}

func TestNotifyOrderLineUpdatedEndpoint(t *testing.T) {
	srv, notifier := newAPITestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/internal/notify/orden-actualizada/O042", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"O042"}, notifier.orderLines)
}

func TestConnectionsEndpointEmpty(t *testing.T) {
	srv, _ := newAPITestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/internal/connections", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Connections []hub.Session `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Connections)
}

func TestLivenessEndpoint(t *testing.T) {
	srv, _ := newAPITestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestReadinessEndpoint_NoBackendsConfigured(t *testing.T) {
	srv, _ := newAPITestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessEndpoint_FailingPostgres(t *testing.T) {
	srv, _ := newAPITestServer(t)
	srv.postgresHealthCheck = failingChecker{}

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "postgres", body["failed_check"])
}
