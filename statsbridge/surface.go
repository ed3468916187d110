// Package statsbridge publishes and consumes per-session byte counters
// across the process boundary between the controller and the privileged
// packet-processing component. The two processes share no memory; they
// communicate solely through a file-backed key-value surface namespaced
// by the configuration's access scope.
//
// Each key is written atomically and independently; multi-key updates are
// not assumed to be visible together. The design tolerates read-during-write
// races because the single writer is the active tunnel instance and the
// reader accepts staleness.
package statsbridge

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rogpeppe/go-internal/lockedfile"

	"github.com/ecarrera/vpn-core/common"
)

// Keys published on the shared surface.
const (
	keyBytesReceived = "bytes_received"
	keyBytesSent     = "bytes_sent"
	keyUpdatedAt     = "stats_updated_at"
)

// ErrNoSuchKey indicates that there's no value for the given key.
var ErrNoSuchKey = errors.New("no such key")

// ErrNoSample indicates that the tunnel has not published any
// statistics yet.
var ErrNoSample = errors.New("no published sample")

// Snapshot is a session-relative statistics sample: traffic accrued since
// the current tunnel start, never lifetime totals (see Publisher for the
// baseline scheme).
type Snapshot struct {
	// BytesReceived is the number of bytes received this session.
	BytesReceived uint64
	// BytesSent is the number of bytes sent this session.
	BytesSent uint64
	// ObservedAt is when the sample was published.
	ObservedAt time.Time
	// Stale marks a sample older than the reader's staleness threshold.
	// Set by Reader.Latest, never persisted on the surface. A stale
	// sample is suspect but still usable.
	Stale bool
}

// Surface is a file-backed key-value store shared between the controller
// and the privileged process. One file per key; reads and writes go
// through lockedfile so each key is individually atomic.
type Surface struct {
	dir string
}

// NewSurface opens (creating if needed) the surface rooted at dir.
func NewSurface(dir string) (*Surface, error) {
	if dir == "" {
		return nil, errors.New("statsbridge: empty surface directory")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Surface{dir: dir}, nil
}

var _ common.KeyValueStore = (*Surface)(nil)

// Dir returns the directory backing the surface.
func (s *Surface) Dir() string { return s.dir }

func (s *Surface) filename(key string) string {
	return filepath.Join(s.dir, key)
}

// Get returns the specified key's value. In case of error, the error is
// such that errors.Is(err, ErrNoSuchKey).
func (s *Surface) Get(key string) ([]byte, error) {
	data, err := lockedfile.Read(s.filename(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchKey, err.Error())
	}
	return data, nil
}

// Set sets the value of a specific key.
func (s *Surface) Set(key string, value []byte) error {
	return lockedfile.Write(s.filename(key), bytes.NewReader(value), 0600)
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Surface) Delete(key string) error {
	err := os.Remove(s.filename(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Publish writes a snapshot to the surface. The timestamp key is written
// last so a reader that observes it also observes counters at least as
// fresh as the previous sample.
func (s *Surface) Publish(snap Snapshot) error {
	if err := s.Set(keyBytesReceived, []byte(strconv.FormatUint(snap.BytesReceived, 10))); err != nil {
		return err
	}
	if err := s.Set(keyBytesSent, []byte(strconv.FormatUint(snap.BytesSent, 10))); err != nil {
		return err
	}
	epoch := float64(snap.ObservedAt.UnixNano()) / float64(time.Second)
	return s.Set(keyUpdatedAt, []byte(strconv.FormatFloat(epoch, 'f', -1, 64)))
}

// Load reads the latest published snapshot, or ErrNoSample when the
// tunnel has not published anything yet.
func (s *Surface) Load() (*Snapshot, error) {
	ts, err := s.Get(keyUpdatedAt)
	if err != nil {
		return nil, ErrNoSample
	}
	epoch, err := strconv.ParseFloat(string(ts), 64)
	if err != nil {
		return nil, fmt.Errorf("statsbridge: corrupt %s: %v", keyUpdatedAt, err)
	}

	rx, err := s.loadCounter(keyBytesReceived)
	if err != nil {
		return nil, err
	}
	tx, err := s.loadCounter(keyBytesSent)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		BytesReceived: rx,
		BytesSent:     tx,
		ObservedAt:    time.Unix(0, int64(epoch*float64(time.Second))),
	}, nil
}

func (s *Surface) loadCounter(key string) (uint64, error) {
	data, err := s.Get(key)
	if err != nil {
		// The keys are written independently; a missing counter next
		// to a present timestamp reads as zero rather than failing.
		if errors.Is(err, ErrNoSuchKey) {
			return 0, nil
		}
		return 0, err
	}
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("statsbridge: corrupt %s: %v", key, err)
	}
	return v, nil
}

// Clear removes all published keys so a subsequent, unrelated session
// never reads stale numbers.
func (s *Surface) Clear() error {
	for _, key := range []string{keyUpdatedAt, keyBytesReceived, keyBytesSent} {
		if err := s.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
