// Package memory provides in-process implementations of the persistence contracts.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coachpo/algohost/internal/domain/journal"
)

// DefaultJournalCapacity bounds a JournalStore created with a non-positive capacity.
const DefaultJournalCapacity = 4096

// JournalStore keeps the most recent journal entries in a fixed-size ring.
type JournalStore struct {
	mu      sync.RWMutex
	entries []journal.Entry
	next    int
	full    bool
}

// NewJournalStore constructs a ring holding at most capacity entries.
func NewJournalStore(capacity int) *JournalStore {
	if capacity <= 0 {
		capacity = DefaultJournalCapacity
	}
	return &JournalStore{entries: make([]journal.Entry, capacity)}
}

// Record implements journal.Recorder. The oldest entry is overwritten once the
// ring is full.
func (s *JournalStore) Record(_ context.Context, entry journal.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.entries[s.next] = entry
	s.next++
	if s.next == len(s.entries) {
		s.next = 0
		s.full = true
	}
	s.mu.Unlock()
	return nil
}

// List implements journal.Store.
func (s *JournalStore) List(_ context.Context, instanceID string, limit int) ([]journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	size := s.next
	if s.full {
		size = len(s.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]journal.Entry, 0, limit)
	for i := 0; i < size && len(out) < limit; i++ {
		idx := (s.next - 1 - i + len(s.entries)) % len(s.entries)
		entry := s.entries[idx]
		if instanceID != "" && entry.InstanceID != instanceID {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
