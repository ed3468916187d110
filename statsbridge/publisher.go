package statsbridge

import (
	"sync"
	"time"

	"github.com/ecarrera/vpn-core/common"
)

var log = common.Category("stats")

// CounterSource reports the lifetime byte counters of the active tunnel.
// The authoritative source is the counter pair maintained by the wrapped
// tunnel instance, not the raw network-interface counters.
type CounterSource interface {
	// ByteCounts returns the lifetime received and sent byte counts.
	ByteCounts() (received, sent uint64, err error)
}

// Publisher runs inside the privileged packet-processing component and
// periodically publishes session-relative byte counts to the surface.
//
// On the first tick after Start it captures the lifetime counters as the
// session baseline and publishes zeros, so the first reading is never a
// large spurious jump. Later ticks publish current minus baseline; when a
// counter regresses below its baseline (the tunnel restarted internally)
// the raw current value is published instead of an underflowed delta.
type Publisher struct {
	surface  *Surface
	source   CounterSource
	interval time.Duration

	mu         sync.Mutex
	running    bool
	stop       chan struct{}
	primed     bool
	baselineRx uint64
	baselineTx uint64
}

// NewPublisher creates a Publisher over the given surface and counter
// source. A non-positive interval falls back to the default.
func NewPublisher(surface *Surface, source CounterSource, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = common.StatsPublishInterval
	}
	return &Publisher{
		surface:  surface,
		source:   source,
		interval: interval,
	}
}

// Start resets the baseline and begins the periodic publication loop.
// Calling Start on a running publisher is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.primed = false
	p.stop = make(chan struct{})
	stop := p.stop
	p.mu.Unlock()

	log.Debug("publisher started (interval: %v)", p.interval)
	go p.loop(stop)
}

// Stop cancels the publication loop and clears the published keys so a
// later, unrelated session never reads this session's numbers. Safe to
// call when not running.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	p.mu.Unlock()

	if err := p.surface.Clear(); err != nil {
		log.Warn("could not clear surface on stop: %v", err)
	}
	log.Debug("publisher stopped")
}

// IsRunning reports whether the publication loop is active.
func (p *Publisher) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Publisher) loop(stop chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if err := p.tick(now); err != nil {
				log.Warn("publication tick failed: %v", err)
			}
		}
	}
}

// tick reads the lifetime counters and publishes one sample.
func (p *Publisher) tick(now time.Time) error {
	rx, tx, err := p.source.ByteCounts()
	if err != nil {
		return err
	}

	p.mu.Lock()
	if !p.primed {
		p.baselineRx = rx
		p.baselineTx = tx
		p.primed = true
		p.mu.Unlock()
		return p.surface.Publish(Snapshot{ObservedAt: now})
	}
	deltaRx := sessionDelta(rx, p.baselineRx)
	deltaTx := sessionDelta(tx, p.baselineTx)
	p.mu.Unlock()

	return p.surface.Publish(Snapshot{
		BytesReceived: deltaRx,
		BytesSent:     deltaTx,
		ObservedAt:    now,
	})
}

// sessionDelta computes current minus baseline, falling back to the raw
// current value when the counter has regressed below its baseline.
func sessionDelta(current, baseline uint64) uint64 {
	if current < baseline {
		return current
	}
	return current - baseline
}
