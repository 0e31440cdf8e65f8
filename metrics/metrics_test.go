package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, srv *MetricsServer) string {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsAreExposed(t *testing.T) {
	reg := NewRegistry()
	m := New("node_launcher", reg)

	m.ObserveReadyWait("ready", 150*time.Millisecond)
	m.IncrementMigration("applied")
	m.IncrementMigration("applied")
	m.SetSchemasActive(2)
	m.IncrementBlobRequest("store", "ok")
	m.AddBlobBytes(42)

	body := scrape(t, NewServer("127.0.0.1:0", reg))
	require.Contains(t, body, `node_launcher_startup_outcomes_total{outcome="ready"} 1`)
	require.Contains(t, body, "node_launcher_startup_ready_wait_seconds_count 1")
	require.Contains(t, body, `node_launcher_schema_migrations_total{result="applied"} 2`)
	require.Contains(t, body, "node_launcher_schemas_active 2")
	require.Contains(t, body, `node_launcher_blob_requests_total{op="store",status="ok"} 1`)
	require.Contains(t, body, "node_launcher_blob_bytes_stored_total 42")
	require.Contains(t, body, "go_goroutines")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveReadyWait("ready", time.Second)
		m.IncrementMigration("failed")
		m.SetSchemasActive(1)
		m.IncrementBlobRequest("fetch", "ok")
		m.AddBlobBytes(1)
	})
}

func TestSeparateRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		New("node_launcher", NewRegistry())
		New("node_launcher", NewRegistry())
	})
}
