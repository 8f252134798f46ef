// Package synclog records the outcome of every order sync attempt so
// failures can be listed and reconciled later.
package synclog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Operation is the kind of sync performed.
type Operation string

const (
	OpCreate Operation = "create"
	OpStatus Operation = "status"
)

// Outcome is the result of one attempt.
type Outcome string

const (
	OutcomeCreated      Outcome = "created"
	OutcomeExists       Outcome = "exists"
	OutcomeUpdated      Outcome = "updated"
	OutcomeNoop         Outcome = "noop"
	OutcomeNotSynced    Outcome = "not_synced"
	OutcomeFailed       Outcome = "failed"
	OutcomeManualAction Outcome = "manual_action"
)

// NeedsAttention reports whether the outcome should show up as a failure.
func (o Outcome) NeedsAttention() bool {
	return o == OutcomeFailed || o == OutcomeManualAction
}

// Entry is one recorded attempt.
type Entry struct {
	ID           int64     `json:"id"`
	OrderID      int64     `json:"order_id"`
	Operation    Operation `json:"operation"`
	Outcome      Outcome   `json:"outcome"`
	SalesOrderID string    `json:"sales_order_id,omitempty"`
	Message      string    `json:"message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Log stores entries.
type Log interface {
	Record(ctx context.Context, e Entry) error
	// Failures returns, per order, the latest entry when it needs attention.
	Failures(ctx context.Context, limit int) ([]Entry, error)
	History(ctx context.Context, orderID int64) ([]Entry, error)
}

// MemoryLog keeps the most recent entries in process. It serves deployments
// without Postgres and tests.
type MemoryLog struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	nextID   int64
	now      func() time.Time
}

// NewMemoryLog keeps at most capacity entries.
func NewMemoryLog(capacity int) *MemoryLog {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryLog{capacity: capacity, now: time.Now}
}

// Record implements Log.
func (m *MemoryLog) Record(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now().UTC()
	}
	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.capacity; over > 0 {
		m.entries = append([]Entry(nil), m.entries[over:]...)
	}
	return nil
}

// Failures implements Log.
func (m *MemoryLog) Failures(ctx context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := make(map[int64]Entry)
	for _, e := range m.entries {
		latest[e.OrderID] = e
	}
	var out []Entry
	for _, e := range latest {
		if e.Outcome.NeedsAttention() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// History implements Log.
func (m *MemoryLog) History(ctx context.Context, orderID int64) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].OrderID == orderID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}
