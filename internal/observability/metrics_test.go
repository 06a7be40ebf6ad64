package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	return totals
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordToolCall(ctx, "list_workflows", true, 20*time.Millisecond)
	m.RecordHTTPRequest(ctx, "GET", 200)
	m.RecordHTTPRequest(ctx, "GET", 0)
	m.RecordRetry(ctx, "GET")
	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, false)
	m.RecordCacheLookup(ctx, false)
	m.RecordCachePurge(ctx)

	totals := collect(t, reader)
	assert.Equal(t, int64(1), totals["mcp.tool.calls"])
	assert.Equal(t, int64(2), totals["n8n.http.requests"])
	assert.Equal(t, int64(1), totals["n8n.http.retries"])
	assert.Equal(t, int64(1), totals["n8n.cache.hits"])
	assert.Equal(t, int64(2), totals["n8n.cache.misses"])
	assert.Equal(t, int64(1), totals["n8n.cache.purges"])
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordToolCall(context.Background(), "health_check", false, time.Second)
		m.RecordHTTPRequest(context.Background(), "GET", 500)
		m.RecordCachePurge(context.Background())
	})
}

func TestNewPrometheusProvider(t *testing.T) {
	provider, handler, err := NewPrometheusProvider()
	require.NoError(t, err)
	defer provider.Shutdown(context.Background())

	m, err := NewMetrics(provider)
	require.NoError(t, err)
	m.RecordCacheLookup(context.Background(), true)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "cache")
	assert.Contains(t, string(body), "hits")
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(201))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "error", statusClass(0))
}
