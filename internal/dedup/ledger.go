// Package dedup holds the bounded, insertion-ordered id ledgers that make
// ingestion idempotent across the stream and polling channels.
package dedup

import "sync"

const (
	// CommandCapacity bounds the ledger of command ids.
	CommandCapacity = 1000
	// OrderCapacity bounds the ledger of order ids.
	OrderCapacity = 500
	// DefaultEvictFraction is the share of oldest keys dropped on overflow.
	DefaultEvictFraction = 0.2
)

// Ledger is a fixed-capacity set of keys that remembers insertion order.
// When an insert pushes it over capacity the oldest fraction is evicted in
// one batch.
type Ledger struct {
	mu       sync.Mutex
	capacity int
	evict    int
	order    []string
	seen     map[string]struct{}
	evicted  uint64
}

// New returns a ledger holding up to capacity keys. fraction outside (0,1]
// falls back to DefaultEvictFraction.
func New(capacity int, fraction float64) *Ledger {
	if capacity < 1 {
		capacity = 1
	}
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultEvictFraction
	}
	evict := int(float64(capacity) * fraction)
	if evict < 1 {
		evict = 1
	}
	return &Ledger{
		capacity: capacity,
		evict:    evict,
		order:    make([]string, 0, capacity+1),
		seen:     make(map[string]struct{}, capacity+1),
	}
}

// Contains reports whether key is currently remembered.
func (l *Ledger) Contains(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[key]
	return ok
}

// Add inserts key and reports whether it was new. The check and the insert
// happen under one lock so concurrent producers cannot both win.
func (l *Ledger) Add(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[key]; ok {
		return false
	}
	l.seen[key] = struct{}{}
	l.order = append(l.order, key)

	if len(l.order) > l.capacity {
		for _, old := range l.order[:l.evict] {
			delete(l.seen, old)
		}
		l.order = append(l.order[:0], l.order[l.evict:]...)
		l.evicted += uint64(l.evict)
	}
	return true
}

// Len returns the number of remembered keys.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// Evicted returns the total number of keys dropped by overflow.
func (l *Ledger) Evicted() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evicted
}

func (l *Ledger) Capacity() int { return l.capacity }
