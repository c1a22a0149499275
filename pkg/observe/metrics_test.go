package observe

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	found := findMetric(rm, name)
	if found == nil {
		return 0
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", found.Data)
	want := attribute.NewSet(attrs...)
	var total int64
	for _, dp := range sum.DataPoints {
		if len(attrs) == 0 || dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}
	return total
}

func TestRecordLookupSplitsHitsAndMisses(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordLookup(ctx, "identicon", true)
	m.RecordLookup(ctx, "identicon", true)
	m.RecordLookup(ctx, "identicon", false)

	rm := collect(t, reader)
	ns := attribute.String("avatar.namespace", "identicon")
	assert.Equal(t, int64(2), sumFor(t, rm, MetricLookups, ns, attribute.String("cache.result", "hit")))
	assert.Equal(t, int64(1), sumFor(t, rm, MetricLookups, ns, attribute.String("cache.result", "miss")))
}

func TestRecordBuildCountsErrors(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordBuild(ctx, "retro", 3*time.Millisecond, nil)
	m.RecordBuild(ctx, "retro", time.Millisecond, errors.New("boom"))

	rm := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, rm, MetricBuilds))
	assert.Equal(t, int64(1), sumFor(t, rm, MetricBuildErrors))

	hist := findMetric(rm, MetricBuildDuration)
	require.NotNil(t, hist)
	data, ok := hist.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, uint64(2), data.DataPoints[0].Count)
}

func TestRecordEvictedIgnoresZero(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordEvicted(ctx, 0, 0)
	m.RecordEvicted(ctx, 3, 1024)
	m.RecordFallback(ctx, "legacy")

	rm := collect(t, reader)
	assert.Equal(t, int64(3), sumFor(t, rm, MetricEvictedFiles))
	assert.Equal(t, int64(1024), sumFor(t, rm, MetricEvictedBytes))
	assert.Equal(t, int64(1), sumFor(t, rm, MetricFallbacks))
}

func TestNoopDoesNotPanic(t *testing.T) {
	m := Noop()
	ctx := context.Background()
	m.RecordLookup(ctx, "x", true)
	m.RecordBuild(ctx, "x", time.Second, errors.New("x"))
	m.RecordFallback(ctx, "x")
	m.RecordEvicted(ctx, 1, 1)
}

func TestPrometheusHandlerExposesMetrics(t *testing.T) {
	p, err := NewPrometheus()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	p.Metrics().RecordLookup(context.Background(), "wavatar", false)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "avatar_cache_lookups")
	assert.Contains(t, string(body), `avatar_namespace="wavatar"`)
	assert.Contains(t, string(body), "go_goroutines")
}
