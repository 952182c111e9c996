package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumFor(t *testing.T, data metricdata.Aggregation, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", data)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestRecorders(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	m, err := New(provider.Meter("test"))
	require.NoError(t, err)

	m.RecordRegister(ctx, "success")
	m.RecordRegister(ctx, "duplicate")
	m.RecordLogin(ctx, "success", 120*time.Millisecond)
	m.RecordLogin(ctx, "success", 80*time.Millisecond)
	m.RecordLogin(ctx, "invalid_credentials", 90*time.Millisecond)
	m.RecordRefresh(ctx, "token_invalid")
	m.RecordVerification(ctx, "code", "success")
	m.RecordPendingUsersDeleted(ctx, 3)
	m.RecordPendingUsersDeleted(ctx, 0)

	got := collect(t, reader)

	assert.Equal(t, int64(1), sumFor(t, got["auth_register_requests_total"], attribute.String("outcome", "duplicate")))
	assert.Equal(t, int64(2), sumFor(t, got["auth_login_requests_total"], attribute.String("outcome", "success")))
	assert.Equal(t, int64(1), sumFor(t, got["auth_login_requests_total"], attribute.String("outcome", "invalid_credentials")))
	assert.Equal(t, int64(1), sumFor(t, got["auth_refresh_requests_total"], attribute.String("outcome", "token_invalid")))
	assert.Equal(t, int64(1), sumFor(t, got["auth_verifications_total"],
		attribute.String("method", "code"), attribute.String("outcome", "success")))
	assert.Equal(t, int64(3), sumFor(t, got["auth_pending_users_deleted_total"]))

	hist, ok := got["auth_login_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *AppMetrics
	assert.NotPanics(t, func() {
		m.RecordRegister(context.Background(), "success")
		m.RecordLogin(context.Background(), "success", time.Second)
		m.RecordRefresh(context.Background(), "success")
		m.RecordVerification(context.Background(), "link", "success")
		m.RecordPendingUsersDeleted(context.Background(), 1)
	})
}
