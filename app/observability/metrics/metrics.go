package metrics

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments. A nil *AppMetrics
// records nothing.
type AppMetrics struct {
	RegisterRequestsTotal    metric.Int64Counter
	LoginRequestsTotal       metric.Int64Counter
	LoginDurationSeconds     metric.Float64Histogram
	RefreshRequestsTotal     metric.Int64Counter
	VerificationsTotal       metric.Int64Counter
	PendingUsersDeletedTotal metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// New creates the instruments on meter.
func New(meter metric.Meter) (*AppMetrics, error) {
	var err error
	m := &AppMetrics{}

	m.RegisterRequestsTotal, err = meter.Int64Counter(
		"auth_register_requests_total",
		metric.WithDescription("Total number of completed registrations by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("auth_register_requests_total: %w", err)
	}

	m.LoginRequestsTotal, err = meter.Int64Counter(
		"auth_login_requests_total",
		metric.WithDescription("Total number of login attempts by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("auth_login_requests_total: %w", err)
	}

	m.LoginDurationSeconds, err = meter.Float64Histogram(
		"auth_login_duration_seconds",
		metric.WithDescription("Duration of login attempts in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("auth_login_duration_seconds: %w", err)
	}

	m.RefreshRequestsTotal, err = meter.Int64Counter(
		"auth_refresh_requests_total",
		metric.WithDescription("Total number of refresh token rotations by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("auth_refresh_requests_total: %w", err)
	}

	m.VerificationsTotal, err = meter.Int64Counter(
		"auth_verifications_total",
		metric.WithDescription("Total number of account verification attempts by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("auth_verifications_total: %w", err)
	}

	m.PendingUsersDeletedTotal, err = meter.Int64Counter(
		"auth_pending_users_deleted_total",
		metric.WithDescription("Total number of unverified accounts removed by the cleanup job"),
		metric.WithUnit("{user}"),
	)
	if err != nil {
		return nil, fmt.Errorf("auth_pending_users_deleted_total: %w", err)
	}

	return m, nil
}

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		m, err := New(otel.GetMeterProvider().Meter("complaint-auth"))
		if err != nil {
			log.Fatalf("Metrics: %v", err)
		}
		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}

func outcome(o string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("outcome", o))
}

func (m *AppMetrics) RecordRegister(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.RegisterRequestsTotal.Add(ctx, 1, outcome(result))
}

func (m *AppMetrics) RecordLogin(ctx context.Context, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.LoginRequestsTotal.Add(ctx, 1, outcome(result))
	m.LoginDurationSeconds.Record(ctx, took.Seconds(), outcome(result))
}

func (m *AppMetrics) RecordRefresh(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.RefreshRequestsTotal.Add(ctx, 1, outcome(result))
}

func (m *AppMetrics) RecordVerification(ctx context.Context, method, result string) {
	if m == nil {
		return
	}
	m.VerificationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", result),
	))
}

func (m *AppMetrics) RecordPendingUsersDeleted(ctx context.Context, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.PendingUsersDeletedTotal.Add(ctx, n)
}
