package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coachpo/algohost/internal/domain/journal"
	"github.com/coachpo/algohost/internal/infra/persistence"
	"github.com/coachpo/algohost/internal/infra/persistence/migrations"
	pgstore "github.com/coachpo/algohost/internal/infra/persistence/postgres"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_USER": "postgres", "POSTGRES_DB": "algohost"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://postgres:secret@%s:%s/algohost?sslmode=disable", host, port.Port())
}

func TestJournalStoreRoundTrip(t *testing.T) {
	dsn := startPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	require.NoError(t, migrations.Apply(ctx, dsn, migrations.Embedded, nil))
	// Re-applying is a no-op.
	require.NoError(t, migrations.Apply(ctx, dsn, migrations.Embedded, nil))

	db, err := persistence.Open(ctx, dsn, persistence.PoolOptions{MaxConns: 4})
	require.NoError(t, err)
	defer db.Close()
	store := pgstore.New(db.Pool()).Journal

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.Record(ctx, journal.Entry{
		InstanceID: "a",
		MessageID:  1,
		Operation:  journal.OpSendOrder,
		Request:    []byte(`{"symbol":"BTC-USDT"}`),
		Success:    true,
		RecordedAt: base,
	}))
	require.NoError(t, store.Record(ctx, journal.Entry{
		InstanceID: "a",
		MessageID:  2,
		Operation:  journal.OpCancelOrder,
		Error:      "unknown order",
		RecordedAt: base.Add(time.Second),
	}))
	require.NoError(t, store.Record(ctx, journal.Entry{
		InstanceID: "b",
		MessageID:  3,
		Operation:  journal.OpSubscribeSymbol,
		Success:    true,
		RecordedAt: base.Add(2 * time.Second),
	}))

	entries, err := store.List(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(2), entries[0].MessageID)
	require.Equal(t, "unknown order", entries[0].Error)
	require.Nil(t, entries[0].Request)
	require.Equal(t, journal.OpSendOrder, entries[1].Operation)
	require.JSONEq(t, `{"symbol":"BTC-USDT"}`, string(entries[1].Request))

	all, err := store.List(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "b", all[0].InstanceID)

	require.NoError(t, migrations.Rollback(ctx, dsn, migrations.Embedded, 1, nil))
	_, err = store.List(ctx, "a", 10)
	require.Error(t, err)
}
