// Package observe records avatar engine metrics with OpenTelemetry and
// exposes them in the Prometheus text format.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records cache and generation activity.
//
// Implementations must be safe for concurrent use and must not panic.
type Metrics interface {
	// RecordLookup counts a cache lookup for namespace.
	RecordLookup(ctx context.Context, namespace string, hit bool)
	// RecordBuild records one attempt to produce a cache entry.
	RecordBuild(ctx context.Context, namespace string, duration time.Duration, err error)
	// RecordFallback counts a request answered by the fallback icon.
	RecordFallback(ctx context.Context, namespace string)
	// RecordEvicted counts files removed by invalidation or sweeping.
	RecordEvicted(ctx context.Context, files int, bytes int64)
}

// Metric names.
const (
	MetricLookups       = "avatar.cache.lookups"
	MetricBuilds        = "avatar.build.total"
	MetricBuildErrors   = "avatar.build.errors"
	MetricBuildDuration = "avatar.build.duration_ms"
	MetricFallbacks     = "avatar.fallback.total"
	MetricEvictedFiles  = "avatar.cache.evicted_files"
	MetricEvictedBytes  = "avatar.cache.evicted_bytes"
)

type metricsImpl struct {
	lookups      metric.Int64Counter
	builds       metric.Int64Counter
	buildErrors  metric.Int64Counter
	durationHist metric.Float64Histogram
	fallbacks    metric.Int64Counter
	evictedFiles metric.Int64Counter
	evictedBytes metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error
	if m.lookups, err = meter.Int64Counter(MetricLookups,
		metric.WithDescription("Cache lookups by namespace and result"),
		metric.WithUnit("{lookup}")); err != nil {
		return nil, err
	}
	if m.builds, err = meter.Int64Counter(MetricBuilds,
		metric.WithDescription("Cache entries generated or fetched"),
		metric.WithUnit("{build}")); err != nil {
		return nil, err
	}
	if m.buildErrors, err = meter.Int64Counter(MetricBuildErrors,
		metric.WithDescription("Failed cache entry builds"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.durationHist, err = meter.Float64Histogram(MetricBuildDuration,
		metric.WithDescription("Cache entry build duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.fallbacks, err = meter.Int64Counter(MetricFallbacks,
		metric.WithDescription("Requests answered with the fallback icon"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.evictedFiles, err = meter.Int64Counter(MetricEvictedFiles,
		metric.WithDescription("Cache files removed"),
		metric.WithUnit("{file}")); err != nil {
		return nil, err
	}
	if m.evictedBytes, err = meter.Int64Counter(MetricEvictedBytes,
		metric.WithDescription("Cache bytes removed"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("avatar.namespace", namespace),
		attribute.String("cache.result", result),
	))
}

func (m *metricsImpl) RecordBuild(ctx context.Context, namespace string, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("avatar.namespace", namespace))
	m.builds.Add(ctx, 1, opt)
	if err != nil {
		m.buildErrors.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordFallback(ctx context.Context, namespace string) {
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("avatar.namespace", namespace)))
}

func (m *metricsImpl) RecordEvicted(ctx context.Context, files int, bytes int64) {
	if files > 0 {
		m.evictedFiles.Add(ctx, int64(files))
	}
	if bytes > 0 {
		m.evictedBytes.Add(ctx, bytes)
	}
}

// Noop returns a Metrics that discards everything.
func Noop() Metrics { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) RecordLookup(context.Context, string, bool) {}
func (noopMetrics) RecordBuild(context.Context, string, time.Duration, error) {}
func (noopMetrics) RecordFallback(context.Context, string) {}
func (noopMetrics) RecordEvicted(context.Context, int, int64) {}
