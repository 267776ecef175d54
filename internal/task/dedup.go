package task

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is how long an identical envelope is suppressed.
const DefaultDebounceWindow = 5 * time.Second

// Deduplicator suppresses byte-identical sends within a debounce window.
// Keys are whole serialized envelopes, so two different payloads for the
// same entity are never suppressed. Entries older than the window are
// pruned on access.
type Deduplicator struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time
}

// NewDeduplicator creates a Deduplicator. A non-positive window uses
// DefaultDebounceWindow.
func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Deduplicator{
		window: window,
		now:    time.Now,
		sent:   make(map[string]time.Time),
	}
}

// WithClock replaces the time source. Used by tests.
func (d *Deduplicator) WithClock(now func() time.Time) *Deduplicator {
	d.now = now
	return d
}

// Claim records key as sent and returns true, or returns false when the
// same key was claimed less than one window ago.
func (d *Deduplicator) Claim(key []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.prune(now)

	k := string(key)
	if at, ok := d.sent[k]; ok && now.Sub(at) < d.window {
		return false
	}
	d.sent[k] = now
	return true
}

// Release forgets key so a failed send can be retried immediately.
func (d *Deduplicator) Release(key []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sent, string(key))
}

// Len returns the number of live entries.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prune(d.now())
	return len(d.sent)
}

func (d *Deduplicator) prune(now time.Time) {
	for k, at := range d.sent {
		if now.Sub(at) >= d.window {
			delete(d.sent, k)
		}
	}
}
