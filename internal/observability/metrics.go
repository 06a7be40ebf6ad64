// Package observability wires OpenTelemetry metrics for the n8n client and
// the MCP tool layer, exported in Prometheus format.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "n8n-mcp"

// Metrics groups the instruments recorded by the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	toolCalls    metric.Int64Counter
	toolDuration metric.Float64Histogram
	httpRequests metric.Int64Counter
	httpRetries  metric.Int64Counter
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	cachePurges  metric.Int64Counter
}

// NewMetrics creates the instruments on the given meter provider. A nil
// provider uses the global one.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	var (
		m   Metrics
		err error
	)
	if m.toolCalls, err = meter.Int64Counter("mcp.tool.calls",
		metric.WithDescription("Tool invocations by tool name and outcome")); err != nil {
		return nil, err
	}
	if m.toolDuration, err = meter.Float64Histogram("mcp.tool.duration",
		metric.WithDescription("Tool invocation latency"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.httpRequests, err = meter.Int64Counter("n8n.http.requests",
		metric.WithDescription("Network attempts against the n8n API")); err != nil {
		return nil, err
	}
	if m.httpRetries, err = meter.Int64Counter("n8n.http.retries",
		metric.WithDescription("Attempts scheduled for retry after a transport failure")); err != nil {
		return nil, err
	}
	if m.cacheHits, err = meter.Int64Counter("n8n.cache.hits"); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = meter.Int64Counter("n8n.cache.misses"); err != nil {
		return nil, err
	}
	if m.cachePurges, err = meter.Int64Counter("n8n.cache.purges"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordToolCall counts one tool invocation and its latency.
func (m *Metrics) RecordToolCall(ctx context.Context, tool string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Bool("success", success),
	)
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordHTTPRequest counts one network attempt. status is 0 for transport failures.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", statusClass(status)),
	))
}

// RecordRetry counts one retried attempt.
func (m *Metrics) RecordRetry(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.httpRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Add(ctx, 1)
		return
	}
	m.cacheMisses.Add(ctx, 1)
}

// RecordCachePurge counts a full cache invalidation.
func (m *Metrics) RecordCachePurge(ctx context.Context) {
	if m == nil {
		return
	}
	m.cachePurges.Add(ctx, 1)
}

// NewPrometheusProvider builds a meter provider backed by a dedicated
// Prometheus registry and returns the handler serving it.
func NewPrometheusProvider() (*sdkmetric.MeterProvider, http.Handler, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return provider, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
