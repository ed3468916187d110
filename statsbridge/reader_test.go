package statsbridge

import (
	"testing"
	"time"
)

func TestReader_Latest(t *testing.T) {
	surface := newTestSurface(t)
	reader := NewReader(surface, 10*time.Second)

	if _, ok := reader.Latest(); ok {
		t.Error("expected no sample before anything is published")
	}

	want := Snapshot{BytesReceived: 7, BytesSent: 9, ObservedAt: time.Now()}
	if err := surface.Publish(want); err != nil {
		t.Fatal(err)
	}

	snap, ok := reader.Latest()
	if !ok {
		t.Fatal("expected a sample")
	}
	if snap.BytesReceived != 7 || snap.BytesSent != 9 {
		t.Errorf("Latest() = (%d, %d), want (7, 9)", snap.BytesReceived, snap.BytesSent)
	}
	if reader.Stale(snap) || snap.Stale {
		t.Error("fresh sample should not be stale")
	}
}

func TestReader_StaleSampleStillReturned(t *testing.T) {
	surface := newTestSurface(t)
	reader := NewReader(surface, 10*time.Second)

	old := Snapshot{
		BytesReceived: 11,
		BytesSent:     22,
		ObservedAt:    time.Now().Add(-time.Minute),
	}
	if err := surface.Publish(old); err != nil {
		t.Fatal(err)
	}

	snap, ok := reader.Latest()
	if !ok {
		t.Fatal("a stale sample must still be returned, not suppressed")
	}
	if !reader.Stale(snap) {
		t.Error("minute-old sample should be stale")
	}
	if !snap.Stale {
		t.Error("returned sample must carry the stale marker")
	}
	if snap.BytesReceived != 11 || snap.BytesSent != 22 {
		t.Errorf("Latest() = (%d, %d), want (11, 22)", snap.BytesReceived, snap.BytesSent)
	}
}

func TestWatcher_SignalsOnPublish(t *testing.T) {
	surface := newTestSurface(t)
	w, err := WatchSurface(surface)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := surface.Publish(Snapshot{BytesReceived: 1, ObservedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Fresh():
	case <-time.After(2 * time.Second):
		t.Fatal("expected a wakeup after publish")
	}
}

func TestWatcher_CloseClosesFresh(t *testing.T) {
	surface := newTestSurface(t)
	w, err := WatchSurface(surface)
	if err != nil {
		t.Fatal(err)
	}
	w.Close()

	// A consumer blocked on Fresh must be released, not parked forever.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-w.Fresh():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Fresh never closed after Close")
		}
	}
}
