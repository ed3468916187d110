package statsbridge

import (
	"time"

	"github.com/ecarrera/vpn-core/common"
)

// Reader is the controller-side consumer of the shared surface.
type Reader struct {
	surface    *Surface
	staleAfter time.Duration
}

// NewReader creates a Reader. A non-positive staleAfter falls back to
// the default staleness threshold.
func NewReader(surface *Surface, staleAfter time.Duration) *Reader {
	if staleAfter <= 0 {
		staleAfter = common.StatsStaleThreshold
	}
	return &Reader{surface: surface, staleAfter: staleAfter}
}

// Surface returns the underlying surface, so callers can watch it for
// fresh samples.
func (r *Reader) Surface() *Surface { return r.surface }

// Latest returns the most recently published snapshot, or false when the
// tunnel has not published anything. A stale snapshot is still returned,
// marked via its Stale field: staleness is a caller-visible signal, not
// a suppression condition, since returning nothing would hide an
// active-but-quiet tunnel.
func (r *Reader) Latest() (*Snapshot, bool) {
	snap, err := r.surface.Load()
	if err != nil {
		return nil, false
	}
	if r.Stale(snap) {
		snap.Stale = true
		log.Warn("statistics sample is stale (age %v)", time.Since(snap.ObservedAt).Round(time.Second))
	}
	return snap, true
}

// Stale reports whether the snapshot is older than the staleness
// threshold.
func (r *Reader) Stale(snap *Snapshot) bool {
	return time.Since(snap.ObservedAt) > r.staleAfter
}
