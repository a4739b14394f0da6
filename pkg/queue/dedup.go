package queue

import (
	"sync"
	"time"

	"github.com/Louieza23/Letterboxio/pkg/types"
)

// DefaultDedupWindow is how long an accepted request suppresses identical ones.
const DefaultDedupWindow = 5 * time.Second

// pruneThreshold is the map size past which expired entries are swept.
const pruneThreshold = 256

type dedupKey struct {
	identifier string
	kind       types.ActionKind
}

// Deduplicator drops repeats of the same (identifier, kind) request that
// arrive within a fixed window of the last accepted one. Remote clients are
// known to fire one gesture several times in a second; a repeated watchlist
// toggle would otherwise undo itself.
type Deduplicator struct {
	mu       sync.Mutex
	window   time.Duration
	now      func() time.Time
	accepted map[dedupKey]time.Time
}

// DedupOption configures a Deduplicator.
type DedupOption func(*Deduplicator)

// WithDedupClock replaces time.Now, for tests.
func WithDedupClock(now func() time.Time) DedupOption {
	return func(d *Deduplicator) {
		d.now = now
	}
}

// NewDeduplicator creates a deduplicator. A non-positive window uses DefaultDedupWindow.
func NewDeduplicator(window time.Duration, opts ...DedupOption) *Deduplicator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	d := &Deduplicator{
		window:   window,
		now:      time.Now,
		accepted: make(map[dedupKey]time.Time),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ShouldAccept reports whether a request should proceed, recording it if so.
// Rejected requests do not extend the window.
func (d *Deduplicator) ShouldAccept(identifier string, kind types.ActionKind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	key := dedupKey{identifier: identifier, kind: kind}
	if last, ok := d.accepted[key]; ok && now.Sub(last) < d.window {
		return false
	}

	d.accepted[key] = now
	if len(d.accepted) > pruneThreshold {
		d.pruneLocked(now)
	}
	return true
}

func (d *Deduplicator) pruneLocked(now time.Time) {
	for key, at := range d.accepted {
		if now.Sub(at) >= d.window {
			delete(d.accepted, key)
		}
	}
}

// Len returns the number of tracked entries, expired or not.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.accepted)
}
