package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/algohost/internal/infra/telemetry"
)

// ObservePoolMetrics registers observable gauges that report pgx pool health.
func ObservePoolMetrics(pool *pgxpool.Pool, poolName string) error {
	if pool == nil {
		return nil
	}
	normalized := strings.TrimSpace(poolName)
	if normalized == "" {
		normalized = "journal"
	}
	attrs := metric.WithAttributes(
		telemetry.AttrEnvironment.String(telemetry.Environment()),
		attribute.String("db_pool", normalized),
	)

	meter := otel.Meter("postgres.pool")
	total, err := meter.Int64ObservableGauge("algohost.db.pool.connections.total",
		metric.WithDescription("Total connections (idle + acquired + constructing)"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	idle, err := meter.Int64ObservableGauge("algohost.db.pool.connections.idle",
		metric.WithDescription("Idle connections ready for checkout"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	acquired, err := meter.Int64ObservableGauge("algohost.db.pool.connections.acquired",
		metric.WithDescription("Connections currently acquired by callers"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stat := pool.Stat()
		o.ObserveInt64(total, int64(stat.TotalConns()), attrs)
		o.ObserveInt64(idle, int64(stat.IdleConns()), attrs)
		o.ObserveInt64(acquired, int64(stat.AcquiredConns()), attrs)
		return nil
	}, total, idle, acquired)
	return err
}
