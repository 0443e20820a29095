package task

import (
	"context"
	"sync"
	"time"
)

// MemoryResultBackend keeps job state in a map. Every write resets the
// record's expiry.
type MemoryResultBackend struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	expiry  time.Duration
	now     func() time.Time
}

type memoryRecord struct {
	rec       StateRecord
	expiresAt time.Time
}

func (r memoryRecord) expired(now time.Time) bool {
	return !r.expiresAt.IsZero() && !now.Before(r.expiresAt)
}

// NewMemoryResultBackend creates a backend whose records expire after
// expiry; zero or negative keeps records forever.
func NewMemoryResultBackend(expiry time.Duration) *MemoryResultBackend {
	return &MemoryResultBackend{
		records: make(map[string]memoryRecord),
		expiry:  expiry,
		now:     time.Now,
	}
}

var _ ResultBackend = (*MemoryResultBackend)(nil)

// SetState implements ResultBackend.SetState.
func (b *MemoryResultBackend) SetState(_ context.Context, rec StateRecord) error {
	now := b.now()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now.UTC()
	}

	entry := memoryRecord{rec: rec}
	if b.expiry > 0 {
		entry.expiresAt = now.Add(b.expiry)
	}

	b.mu.Lock()
	b.records[rec.TaskID] = entry
	b.mu.Unlock()
	return nil
}

// GetState implements ResultBackend.GetState.
func (b *MemoryResultBackend) GetState(_ context.Context, taskID string) (*StateRecord, error) {
	b.mu.RLock()
	entry, ok := b.records[taskID]
	b.mu.RUnlock()

	if !ok {
		return nil, ErrTaskNotFound
	}
	if entry.expired(b.now()) {
		b.mu.Lock()
		// A SetState between the two locks leaves a fresh record in place.
		if current, ok := b.records[taskID]; ok && current.expired(b.now()) {
			delete(b.records, taskID)
		}
		b.mu.Unlock()
		return nil, ErrTaskNotFound
	}

	rec := entry.rec
	return &rec, nil
}

// Close implements ResultBackend.Close.
func (b *MemoryResultBackend) Close() error {
	return nil
}
