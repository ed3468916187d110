package platform

import (
	"fmt"
	"sync"

	"github.com/ecarrera/vpn-core/common"
)

// FakeHost is an in-process Host used in tests and in development mode
// when no privileged helper is available. It records operations in order
// and lets callers script status notifications and approval state.
type FakeHost struct {
	mu            sync.Mutex
	approved      bool
	registrations map[string]*Registration
	running       string
	adopt         *SessionInfo
	journal       []string
	notes         chan StatusNotification
}

var _ Host = (*FakeHost)(nil)

// NewFakeHost creates a FakeHost with the extension approved.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		approved:      true,
		registrations: make(map[string]*Registration),
		notes:         make(chan StatusNotification, 16),
	}
}

// SetApproved toggles the extension-approval gate.
func (h *FakeHost) SetApproved(approved bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.approved = approved
}

// SetActiveSession scripts the session reported by ActiveSession.
func (h *FakeHost) SetActiveSession(info *SessionInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.adopt = info
}

// EmitStatus injects a status notification as the real helper would.
func (h *FakeHost) EmitStatus(protocol, status, message string) {
	h.notes <- StatusNotification{Protocol: protocol, Status: status, Message: message}
}

// Journal returns the ordered list of operations performed on the host.
func (h *FakeHost) Journal() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.journal))
	copy(out, h.journal)
	return out
}

// Registration returns the stored registration for a protocol, if any.
func (h *FakeHost) Registration(protocol string) (*Registration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	reg, ok := h.registrations[protocol]
	return reg, ok
}

// Running returns the protocol of the running tunnel, or "".
func (h *FakeHost) Running() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// SaveRegistration implements Host.
func (h *FakeHost) SaveRegistration(reg *Registration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.approved {
		return common.ErrExtensionNotApproved
	}
	cp := *reg
	h.registrations[reg.Protocol] = &cp
	h.journal = append(h.journal, "save:"+reg.Protocol)
	return nil
}

// RemoveRegistration implements Host.
func (h *FakeHost) RemoveRegistration(protocol string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.registrations, protocol)
	h.journal = append(h.journal, "remove:"+protocol)
	return nil
}

// InstallTrustAnchor implements Host.
func (h *FakeHost) InstallTrustAnchor(pem []byte, commonName string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.approved {
		return common.ErrExtensionNotApproved
	}
	h.journal = append(h.journal, "trust:"+commonName)
	return nil
}

// StartTunnel implements Host.
func (h *FakeHost) StartTunnel(protocol string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.approved {
		return common.ErrExtensionNotApproved
	}
	if _, ok := h.registrations[protocol]; !ok {
		return fmt.Errorf("%w: %s", common.ErrNoRegistration, protocol)
	}
	h.running = protocol
	h.journal = append(h.journal, "start:"+protocol)
	return nil
}

// StopTunnel implements Host.
func (h *FakeHost) StopTunnel(protocol string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running == protocol {
		h.running = ""
	}
	h.journal = append(h.journal, "stop:"+protocol)
	return nil
}

// ActiveSession implements Host.
func (h *FakeHost) ActiveSession() (*SessionInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.adopt == nil {
		return nil, false
	}
	info := *h.adopt
	return &info, true
}

// Notifications implements Host.
func (h *FakeHost) Notifications() <-chan StatusNotification {
	return h.notes
}

// Close implements Host.
func (h *FakeHost) Close() error {
	return nil
}
