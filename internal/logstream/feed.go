// Package logstream follows the backend log feed, a server-sent-event stream
// of JSON log records, and keeps the received entries in arrival order.
package logstream

import (
	"sync"
	"time"
)

// Entry is one received log record. Entries are never changed after they
// are appended.
type Entry struct {
	Seq        int       `json:"seq"`
	Target     string    `json:"target"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"received_at"`
}

// Feed is the append-only log sequence. It grows for the lifetime of the
// process. Safe for concurrent use.
type Feed struct {
	mu        sync.RWMutex
	entries   []Entry
	malformed int
	lastErr   error
}

// NewFeed returns an empty feed.
func NewFeed() *Feed { return &Feed{} }

// Append adds e and assigns its sequence number.
func (f *Feed) Append(e Entry) Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.Seq = len(f.entries) + 1
	f.entries = append(f.entries, e)
	f.lastErr = nil
	return e
}

// Entries returns a copy of the sequence.
func (f *Feed) Entries() []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Len returns the number of entries.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Malformed returns how many events failed to parse.
func (f *Feed) Malformed() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.malformed
}

// LastError returns the most recent parse error. It is cleared by the next
// good entry.
func (f *Feed) LastError() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}

func (f *Feed) reject(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.malformed++
	f.lastErr = err
}
