package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/library-lending-go/lending/oteladapters"
)

func Test_MetricsCollector_When_ADurationIsRecorded(t *testing.T) {
	// arrange
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	collector := oteladapters.NewMetricsCollector(provider.Meter("lending"))

	// act
	collector.RecordDuration(
		"lendingengine_operation_duration_seconds",
		150*time.Millisecond,
		map[string]string{"operation": "lend", "status": "success"},
	)

	// assert
	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "failed to collect metrics")

	histogram := findHistogram(t, resourceMetrics, "lendingengine_operation_duration_seconds")
	require.Len(t, histogram.DataPoints, 1)

	dataPoint := histogram.DataPoints[0]
	assert.Equal(t, uint64(1), dataPoint.Count)
	assert.InDelta(t, 0.15, dataPoint.Sum, 0.001, "duration should be recorded in seconds")

	expectedAttrs := attribute.NewSet(
		attribute.String("operation", "lend"),
		attribute.String("status", "success"),
	)
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs))
}

func Test_MetricsCollector_When_ACounterIsIncrementedRepeatedly(t *testing.T) {
	// arrange
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	collector := oteladapters.NewMetricsCollector(provider.Meter("lending"))
	labels := map[string]string{"operation": "lend", "error_type": "out_of_stock"}

	// act
	collector.IncrementCounter("lendingengine_business_conflicts_total", labels)
	collector.IncrementCounter("lendingengine_business_conflicts_total", labels)
	collector.IncrementCounterContext(context.Background(), "lendingengine_business_conflicts_total", labels)

	// assert
	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "failed to collect metrics")

	sum := findCounter(t, resourceMetrics, "lendingengine_business_conflicts_total")
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
}

func Test_MetricsCollector_When_AGaugeValueIsRecorded(t *testing.T) {
	// arrange
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	collector := oteladapters.NewMetricsCollector(provider.Meter("lending"))

	// act
	collector.RecordValue("lendingengine_loans_listed", 7, map[string]string{"operation": "list_overdue_loans"})

	// assert
	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "failed to collect metrics")

	gauge := findGauge(t, resourceMetrics, "lendingengine_loans_listed")
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, 7.0, gauge.DataPoints[0].Value)
}

/*** test helpers and fixtures ***/

func findHistogram(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Histogram[float64] {
	t.Helper()

	for _, scopeMetrics := range rm.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				histogram, ok := m.Data.(metricdata.Histogram[float64])
				require.True(t, ok, "metric %s should be a float64 histogram", name)

				return histogram
			}
		}
	}

	t.Fatalf("histogram %s not found", name)

	return metricdata.Histogram[float64]{}
}

func findCounter(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()

	for _, scopeMetrics := range rm.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok, "metric %s should be an int64 sum", name)

				return sum
			}
		}
	}

	t.Fatalf("counter %s not found", name)

	return metricdata.Sum[int64]{}
}

func findGauge(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Gauge[float64] {
	t.Helper()

	for _, scopeMetrics := range rm.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				gauge, ok := m.Data.(metricdata.Gauge[float64])
				require.True(t, ok, "metric %s should be a float64 gauge", name)

				return gauge
			}
		}
	}

	t.Fatalf("gauge %s not found", name)

	return metricdata.Gauge[float64]{}
}
