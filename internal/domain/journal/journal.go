// Package journal defines persistence contracts for the outbound call audit trail.
package journal

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Operation names the gateway call an entry records.
type Operation string

const (
	OpSendOrder         Operation = "send_order"
	OpCancelOrder       Operation = "cancel_order"
	OpSubscribeSymbol   Operation = "subscribe_symbol"
	OpGetOrderStatus    Operation = "get_order_status"
	OpGetAccountBalance Operation = "get_account_balance"
	OpGetAllOrders      Operation = "get_all_orders"
)

// Entry captures one outbound call made on behalf of an instance.
type Entry struct {
	ID         uuid.UUID
	InstanceID string
	MessageID  int64
	Operation  Operation
	Request    json.RawMessage
	Success    bool
	Error      string
	RecordedAt time.Time
}

// Recorder appends entries to the journal.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Store abstracts persistence operations for the journal.
type Store interface {
	Recorder
	// List returns the most recent entries for instanceID, newest first. An
	// empty instanceID lists every instance.
	List(ctx context.Context, instanceID string, limit int) ([]Entry, error)
}

// Nop discards every entry.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) error { return nil }
