// Package retention keeps the most recent accepted webhook notifications in
// memory for operator inspection.
//
// The ring has a fixed capacity; once full, adding an update evicts the
// oldest one. Reads and writes share a single lock, so the status page can
// render a snapshot while notifications are arriving concurrently. Nothing is
// persisted: a restart empties the ring.
package retention

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultCapacity is the number of updates kept when no capacity is configured.
const DefaultCapacity = 100

// Update is one accepted webhook notification.
type Update struct {
	ID         string          `json:"id"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Algorithm  string          `json:"algorithm"`
	Payload    json.RawMessage `json:"payload"`
}

// Ring is a bounded, most-recent-first buffer of updates. Safe for concurrent use.
type Ring struct {
	mu    sync.RWMutex
	buf   []Update
	head  int // index of the next write slot
	count int
}

// New creates a Ring holding at most capacity updates. Capacity below 1 is
// treated as 1.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]Update, capacity)}
}

// Add records u as the most recent update, evicting the oldest when full.
func (r *Ring) Add(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.head] = u
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Snapshot returns a copy of the retained updates, most recent first.
func (r *Ring) Snapshot() []Update {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Update, 0, r.count)
	for i := 1; i <= r.count; i++ {
		idx := (r.head - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// Len returns the number of retained updates.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the maximum number of retained updates.
func (r *Ring) Cap() int {
	return len(r.buf)
}
