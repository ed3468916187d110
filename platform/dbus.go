package platform

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/ecarrera/vpn-core/common"
)

// D-Bus identity of the privileged helper daemon.
const (
	helperBusName    = "com.ecarrera.vpncore.Helper1"
	helperObjectPath = "/com/ecarrera/vpncore/Helper1"
	helperInterface  = "com.ecarrera.vpncore.Helper1"

	statusChangedMember = "StatusChanged"
	notApprovedDBusErr  = helperInterface + ".Error.NotApproved"
)

var log = common.Category("platform")

// DBusHost talks to the privileged helper over the system bus. The
// helper exposes registration and lifecycle methods and emits
// StatusChanged(protocol, status, message) signals.
type DBusHost struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	signals chan *dbus.Signal
	notes   chan StatusNotification
	done    chan struct{}
}

var _ Host = (*DBusHost)(nil)

// NewDBusHost connects to the system bus and subscribes to the helper's
// status signals.
func NewDBusHost() (*DBusHost, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(helperObjectPath),
		dbus.WithMatchInterface(helperInterface),
		dbus.WithMatchMember(statusChangedMember),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to status signals: %w", err)
	}

	h := &DBusHost{
		conn:    conn,
		obj:     conn.Object(helperBusName, helperObjectPath),
		signals: make(chan *dbus.Signal, 16),
		notes:   make(chan StatusNotification, 16),
		done:    make(chan struct{}),
	}
	conn.Signal(h.signals)
	go h.forwardSignals()
	return h, nil
}

// forwardSignals translates raw bus signals into StatusNotifications.
func (h *DBusHost) forwardSignals() {
	for {
		select {
		case <-h.done:
			return
		case sig, ok := <-h.signals:
			if !ok {
				return
			}
			if sig.Name != helperInterface+"."+statusChangedMember {
				continue
			}
			note, err := decodeStatusSignal(sig.Body)
			if err != nil {
				log.Warn("malformed status signal: %v", err)
				continue
			}
			select {
			case h.notes <- note:
			default:
				// A full queue means the consumer is gone or wedged;
				// newer notifications supersede dropped ones anyway.
				log.Warn("dropping status notification for %s", note.Protocol)
			}
		}
	}
}

func decodeStatusSignal(body []interface{}) (StatusNotification, error) {
	if len(body) != 3 {
		return StatusNotification{}, fmt.Errorf("expected 3 fields, got %d", len(body))
	}
	protocol, ok1 := body[0].(string)
	status, ok2 := body[1].(string)
	message, ok3 := body[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return StatusNotification{}, errors.New("non-string field in status signal")
	}
	return StatusNotification{Protocol: protocol, Status: status, Message: message}, nil
}

// SaveRegistration implements Host.
func (h *DBusHost) SaveRegistration(reg *Registration) error {
	payload, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("failed to encode registration: %w", err)
	}
	call := h.obj.Call(helperInterface+".SaveRegistration", 0, string(payload))
	return translateDBusError(call.Err)
}

// RemoveRegistration implements Host.
func (h *DBusHost) RemoveRegistration(protocol string) error {
	call := h.obj.Call(helperInterface+".RemoveRegistration", 0, protocol)
	return translateDBusError(call.Err)
}

// InstallTrustAnchor implements Host.
func (h *DBusHost) InstallTrustAnchor(pem []byte, commonName string) error {
	call := h.obj.Call(helperInterface+".InstallTrustAnchor", 0, string(pem), commonName)
	return translateDBusError(call.Err)
}

// StartTunnel implements Host.
func (h *DBusHost) StartTunnel(protocol string) error {
	call := h.obj.Call(helperInterface+".StartTunnel", 0, protocol)
	return translateDBusError(call.Err)
}

// StopTunnel implements Host.
func (h *DBusHost) StopTunnel(protocol string) error {
	call := h.obj.Call(helperInterface+".StopTunnel", 0, protocol)
	return translateDBusError(call.Err)
}

// ActiveSession implements Host. The helper may have been started
// independently (e.g. by on-demand policy) before this controller
// attached, so the controller asks instead of assuming disconnected.
func (h *DBusHost) ActiveSession() (*SessionInfo, bool) {
	var protocol, status string
	call := h.obj.Call(helperInterface+".ActiveSession", 0)
	if call.Err != nil {
		log.Warn("could not query active session: %v", call.Err)
		return nil, false
	}
	if err := call.Store(&protocol, &status); err != nil {
		log.Warn("malformed active session reply: %v", err)
		return nil, false
	}
	if protocol == "" {
		return nil, false
	}
	return &SessionInfo{Protocol: protocol, Status: status}, true
}

// Notifications implements Host.
func (h *DBusHost) Notifications() <-chan StatusNotification {
	return h.notes
}

// Close implements Host.
func (h *DBusHost) Close() error {
	close(h.done)
	h.conn.RemoveSignal(h.signals)
	return h.conn.Close()
}

// translateDBusError maps bus-level permission failures onto the
// distinguished extension-approval error; callers present a different
// remediation for that case.
func translateDBusError(err error) error {
	if err == nil {
		return nil
	}
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		switch dbusErr.Name {
		case notApprovedDBusErr, "org.freedesktop.DBus.Error.AccessDenied":
			return fmt.Errorf("%w: %v", common.ErrExtensionNotApproved, err)
		}
	}
	return err
}
