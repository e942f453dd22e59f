package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachpo/algohost/internal/domain/journal"
)

const (
	journalInsertSQL = `
INSERT INTO gateway_journal (
    id,
    instance_id,
    message_id,
    operation,
    request,
    success,
    error,
    recorded_at
)
VALUES (
    @id,
    @instance_id,
    @message_id,
    @operation,
    @request::jsonb,
    @success,
    @error,
    @recorded_at
)
ON CONFLICT (id) DO NOTHING;
`

	journalSelectSQL = `
SELECT
    id,
    instance_id,
    message_id,
    operation,
    COALESCE(request, 'null'::jsonb),
    success,
    error,
    recorded_at
FROM gateway_journal
WHERE (@instance_id = '' OR instance_id = @instance_id)
ORDER BY recorded_at DESC, message_id DESC
LIMIT @limit;
`

	defaultJournalListLimit = 100
	defaultRecordAttempts   = 3
)

var errNilPool = errors.New("postgres journal store: nil pool")

// JournalStore persists gateway journal entries.
type JournalStore struct {
	pool     *pgxpool.Pool
	attempts uint
}

var _ journal.Store = (*JournalStore)(nil)

// NewJournalStore constructs a JournalStore backed by the provided pool.
func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool, attempts: defaultRecordAttempts}
}

// Record implements journal.Recorder. Connection-level failures are retried
// with exponential backoff; statement errors are returned immediately.
func (s *JournalStore) Record(ctx context.Context, entry journal.Entry) error {
	if s == nil || s.pool == nil {
		return errNilPool
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	var request any
	if len(entry.Request) > 0 {
		request = string(entry.Request)
	}
	args := pgx.NamedArgs{
		"id":          entry.ID,
		"instance_id": entry.InstanceID,
		"message_id":  entry.MessageID,
		"operation":   string(entry.Operation),
		"request":     request,
		"success":     entry.Success,
		"error":       entry.Error,
		"recorded_at": entry.RecordedAt,
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if _, err := s.pool.Exec(ctx, journalInsertSQL, args); err != nil {
			if !retryable(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(s.attempts),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// List implements journal.Store.
func (s *JournalStore) List(ctx context.Context, instanceID string, limit int) ([]journal.Entry, error) {
	if s == nil || s.pool == nil {
		return nil, errNilPool
	}
	if limit <= 0 {
		limit = defaultJournalListLimit
	}
	rows, err := s.pool.Query(ctx, journalSelectSQL, pgx.NamedArgs{
		"instance_id": strings.TrimSpace(instanceID),
		"limit":       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []journal.Entry
	for rows.Next() {
		var (
			entry     journal.Entry
			operation string
			request   []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.InstanceID,
			&entry.MessageID,
			&operation,
			&request,
			&entry.Success,
			&entry.Error,
			&entry.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entry.Operation = journal.Operation(operation)
		if string(request) != "null" {
			entry.Request = request
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return out, nil
}

// retryable reports whether err is worth another attempt. Server-side
// statement errors and cancellation are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception.
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return true
}
