package statsbridge

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher delivers a wakeup whenever the privileged process publishes a
// fresh sample, saving the controller from busy polling. Wakeups are
// best-effort coalesced: a slow consumer sees one pending wakeup, not a
// backlog.
type Watcher struct {
	fsw   *fsnotify.Watcher
	fresh chan struct{}
	done  chan struct{}
}

// WatchSurface starts watching the surface's backing directory.
func WatchSurface(s *Surface) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(s.Dir()); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:   fsw,
		fresh: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Fresh returns the channel signalled after each published sample.
func (w *Watcher) Fresh() <-chan struct{} { return w.fresh }

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	// Closing fresh on exit releases any consumer blocked on it.
	defer close(w.fresh)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// The timestamp key is written last on every publish,
			// so it alone marks a complete sample.
			if filepath.Base(ev.Name) != keyUpdatedAt {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			select {
			case w.fresh <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("surface watch error: %v", err)
		}
	}
}
