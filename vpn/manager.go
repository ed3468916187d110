package vpn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecarrera/vpn-core/common"
	"github.com/ecarrera/vpn-core/config"
	"github.com/ecarrera/vpn-core/platform"
	"github.com/ecarrera/vpn-core/statsbridge"
)

// Session is the live aggregate owned by the Manager: the selected
// protocol, its active provider, and the last statistics snapshot.
// A Session is created on connect, replaced (never mutated in place)
// when a different protocol is chosen, and cleared on terminal
// disconnect.
type Session struct {
	// ID uniquely identifies this session.
	ID string
	// Kind is the protocol of this session.
	Kind ProtocolKind
	// Provider is the active protocol provider.
	Provider Provider
	// StartedAt is when the session was requested.
	StartedAt time.Time
	// LastStats is the most recent statistics snapshot, if any.
	LastStats *statsbridge.Snapshot
}

// Manager orchestrates provider selection and owns the visible
// connection state machine.
//
// The visible (status, message) pair has two sources: caller-initiated
// connect/disconnect calls post provisional states, and asynchronous
// platform notifications overwrite them as the authoritative truth once
// a tunnel exists. All mutation is serialized under one lock, and
// notifications are consumed by a single goroutine, so no two writers
// ever interleave on the state.
type Manager struct {
	env providerEnv
	cfg *config.Config

	mu       sync.Mutex
	session  *Session
	status   ConnectionStatus
	message  string
	onChange func(status ConnectionStatus, message string)

	watchMu sync.Mutex
	watcher *statsbridge.Watcher

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a session manager over the given collaborators.
// It queries the platform for an already-running session and adopts its
// state: the privileged process may have been started independently
// (e.g. by on-demand policy) before this controller attached, so the
// manager cannot assume "disconnected" at start.
func NewManager(cfg *config.Config, host platform.Host, store *platform.RegistrationStore, creds common.CredentialStore) (*Manager, error) {
	sharedDir := cfg.SharedDir
	if sharedDir == "" {
		dir, err := common.GetSharedDir(cfg.AccessScope)
		if err != nil {
			return nil, err
		}
		sharedDir = dir
	}
	surface, err := statsbridge.NewSurface(sharedDir)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		env: providerEnv{
			host:  host,
			store: store,
			creds: creds,
			stats: statsbridge.NewReader(surface, cfg.StatsStaleAfter),
			scope: cfg.AccessScope,
		},
		cfg:    cfg,
		status: StatusDisconnected,
		stop:   make(chan struct{}),
	}

	m.adoptExistingSession()
	go m.run()
	return m, nil
}

// adoptExistingSession initializes the visible state from a session the
// host is already running, if any.
func (m *Manager) adoptExistingSession() {
	info, ok := m.env.host.ActiveSession()
	if !ok {
		return
	}

	kind, err := ParseProtocolKind(info.Protocol)
	if err != nil || !kind.Supported() {
		log.Error("host reports session for unusable protocol %q", info.Protocol)
		m.status = StatusInvalid
		m.message = "unknown protocol " + info.Protocol
		return
	}

	provider, err := newProvider(kind, m.env)
	if err != nil {
		m.status = StatusInvalid
		m.message = err.Error()
		return
	}
	if err := provider.LoadConfiguration(); err != nil {
		log.Warn("could not load persisted registration for adopted session: %v", err)
	}

	status, known := statusFromPlatform(info.Status)
	if !known {
		log.Error("host reports unknown status %q, degrading to invalid", info.Status)
	}

	m.session = &Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		Provider:  provider,
		StartedAt: time.Now(),
	}
	m.status = status
	provider.UpdateStatus(status)
	log.Info("adopted existing %s session in state %s", kind, status)
	if status == StatusConnected {
		m.startStatsWatch()
	}
}

// Connect establishes a session to the configured server using the given
// protocol. The visible state moves to "connecting" optimistically; any
// failure reverts it to "disconnected" and surfaces the error.
//
// Selecting an unimplemented protocol fails fast with ErrNotImplemented
// before any state change: unimplemented protocols must never be
// silently downgraded.
func (m *Manager) Connect(ctx context.Context, cfg *ServerConfiguration, kind ProtocolKind) error {
	if !kind.Supported() {
		log.Error("refusing to connect with unimplemented protocol %s", kind)
		return fmt.Errorf("%w: %s is not selectable", common.ErrNotImplemented, kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Switching protocols requires tearing the previous provider's
	// tunnel down first: no two live tunnel registrations may coexist.
	if m.session != nil && m.session.Kind != kind {
		m.teardownLocked()
	}

	m.setStatusLocked(StatusConnecting, "connecting to "+cfg.Name)

	provider, err := newProvider(kind, m.env)
	if err != nil {
		m.setStatusLocked(StatusDisconnected, err.Error())
		return err
	}
	if err := provider.LoadConfiguration(); err != nil {
		m.setStatusLocked(StatusDisconnected, err.Error())
		return err
	}
	if err := provider.Connect(ctx, cfg); err != nil {
		m.setStatusLocked(StatusDisconnected, err.Error())
		return err
	}

	m.session = &Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		Provider:  provider,
		StartedAt: time.Now(),
	}
	return nil
}

// Disconnect requests teardown of the active session. Calling it with no
// active session returns nil with no state change. Errors during
// disconnect are logged but not surfaced: the platform's own
// notification will eventually settle the visible state.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}

	m.setStatusLocked(StatusDisconnecting, "disconnecting")
	if err := m.session.Provider.Disconnect(); err != nil {
		log.Error("disconnect request failed: %v", err)
	}
	return nil
}

// teardownLocked fully dismantles the current session: tunnel stop and
// registration removal, so the next provider starts from a clean host.
func (m *Manager) teardownLocked() {
	if m.session == nil {
		return
	}
	tag := m.session.Kind.Tag()
	if err := m.session.Provider.Disconnect(); err != nil {
		log.Error("teardown of %s session failed: %v", m.session.Kind, err)
	}
	if err := m.env.host.RemoveRegistration(tag); err != nil {
		log.Error("could not remove %s registration: %v", m.session.Kind, err)
	}
	if err := m.env.store.Remove(tag); err != nil {
		log.Error("could not drop persisted %s registration: %v", m.session.Kind, err)
	}
	m.stopStatsWatch()
	m.session = nil
}

// Status returns the current visible state and message.
func (m *Manager) Status() (ConnectionStatus, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.message
}

// CurrentSession returns the protocol of the active session, if any.
func (m *Manager) CurrentSession() (ProtocolKind, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return 0, false
	}
	return m.session.Kind, true
}

// DataCount returns the latest session statistics, if the tunnel has
// published any.
func (m *Manager) DataCount() (*statsbridge.Snapshot, bool) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return nil, false
	}
	return session.Provider.DataCount()
}

// SetOnStatusChange sets a callback invoked after every visible state
// change. The callback runs on its own goroutine and must not assume it
// observes every intermediate state.
func (m *Manager) SetOnStatusChange(callback func(status ConnectionStatus, message string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = callback
}

// Close stops the notification loop. It does not tear down a running
// tunnel: the privileged host outlives the controller by design.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	m.stopStatsWatch()
	return nil
}

// setStatusLocked applies a state change and notifies the observer.
// Callers must hold m.mu.
func (m *Manager) setStatusLocked(status ConnectionStatus, message string) {
	m.status = status
	m.message = message
	log.Debug("state -> %s (%s)", status, message)
	if m.onChange != nil {
		go m.onChange(status, message)
	}
}

// run is the single consumer of asynchronous platform notifications.
func (m *Manager) run() {
	for {
		select {
		case <-m.stop:
			return
		case note, ok := <-m.env.host.Notifications():
			if !ok {
				return
			}
			m.handleNotification(note)
		}
	}
}

// handleNotification applies an asynchronous status change. Once a
// tunnel exists the platform is the authoritative source of truth: its
// notifications overwrite the manager's provisional connecting and
// disconnecting states.
func (m *Manager) handleNotification(note platform.StatusNotification) {
	status, known := statusFromPlatform(note.Status)
	if !known {
		log.Error("unknown platform status %q, degrading to invalid", note.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.session.Provider.UpdateStatus(status)
	}

	message := note.Message
	if message == "" {
		message = status.String()
	}
	m.setStatusLocked(status, message)

	switch status {
	case StatusConnected:
		m.startStatsWatch()
	case StatusDisconnected:
		// Terminal disconnect clears the session aggregate.
		m.stopStatsWatch()
		m.session = nil
	case StatusInvalid:
		log.Error("session entered invalid state: %s", note.Message)
	}
}

// startStatsWatch begins refreshing the session's statistics snapshot
// whenever the privileged process publishes a fresh sample.
func (m *Manager) startStatsWatch() {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watcher != nil {
		return
	}

	watcher, err := statsbridge.WatchSurface(m.env.stats.Surface())
	if err != nil {
		log.Warn("could not watch statistics surface: %v", err)
		return
	}
	m.watcher = watcher

	go func() {
		for {
			select {
			case <-m.stop:
				return
			case _, ok := <-watcher.Fresh():
				if !ok {
					return
				}
				m.refreshStats()
			}
		}
	}()
}

func (m *Manager) stopStatsWatch() {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watcher != nil {
		m.watcher.Close()
		m.watcher = nil
	}
}

func (m *Manager) refreshStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return
	}
	if snap, ok := m.session.Provider.DataCount(); ok {
		m.session.LastStats = snap
	}
}
