package relay

import (
	"sync"
	"time"
)

// backoffEntry is a BackoffEntry from spec.md §3: {stamp, wait}.
type backoffEntry struct {
	stamp time.Time
	wait  int // seconds
}

// backoffTable implements spec.md §4.2. It has its own mutex rather than
// sharing Server.mu since it is mutated only from RelayDialer and from the
// relay open/error paths (spec.md §5 "Shared resources").
type backoffTable struct {
	mu      sync.Mutex
	entries map[string]*backoffEntry
}

func newBackoffTable() *backoffTable {
	return &backoffTable{entries: map[string]*backoffEntry{}}
}

// shouldTry reports whether peerID may be dialed now: no entry, or the
// entry's wait has elapsed.
func (b *backoffTable) shouldTry(peerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[peerID]
	if !ok {
		return true
	}
	return time.Since(e.stamp).Seconds() >= float64(e.wait)
}

// recordFailure doubles the existing wait or inserts a fresh 1-second
// entry.
func (b *backoffTable) recordFailure(peerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[peerID]; ok {
		e.stamp = time.Now()
		e.wait *= 2
		return
	}
	b.entries[peerID] = &backoffEntry{stamp: time.Now(), wait: 1}
}

// clearOne drops peerID's entry, called on successful open.
func (b *backoffTable) clearOne(peerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, peerID)
}

// clear drops every entry, called on HTTP close to force quick
// rediscovery after a scheduled restart (spec.md §4.2).
func (b *backoffTable) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = map[string]*backoffEntry{}
}
