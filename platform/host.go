// Package platform is the boundary to the privileged packet-processing
// host: the isolated process that owns the network interface and performs
// the actual tunneling. The controller registers tunnel descriptors with
// the host, asks it to start and stop sessions, and receives asynchronous
// status notifications back.
package platform

import (
	"time"

	"github.com/ecarrera/vpn-core/common"
)

// Status values used by the privileged host. The vocabulary is the
// host's, not ours; the session manager translates it and degrades
// anything unknown to its invalid state instead of failing.
const (
	StatusDisconnected  = "disconnected"
	StatusConnecting    = "connecting"
	StatusConnected     = "connected"
	StatusDisconnecting = "disconnecting"
	StatusReasserting   = "reasserting"
	StatusInvalid       = "invalid"
)

// Registration is the tunnel registration record handed to the privileged
// host. It carries everything the host needs to run a session: the
// protocol, the serialized descriptor, an opaque credential reference
// (never the raw secret), and the access scope under which the host
// publishes statistics.
type Registration struct {
	// ID uniquely identifies this registration.
	ID string `json:"id"`
	// Protocol is the protocol tag (OPENVPN, IKEV2, ...).
	Protocol string `json:"protocol"`
	// ServerAddress is the remote endpoint.
	ServerAddress string `json:"server_address"`
	// Descriptor is the serialized protocol-specific tunnel descriptor.
	Descriptor []byte `json:"descriptor"`
	// Credential references the stored secret.
	Credential common.CredentialRef `json:"credential"`
	// Scope is the access-group boundary; the host uses it to locate
	// the shared statistics surface.
	Scope string `json:"scope"`
	// UpdatedAt is when the registration was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusNotification is an asynchronous status change reported by the
// privileged host.
type StatusNotification struct {
	// Protocol is the protocol tag of the affected session.
	Protocol string
	// Status is one of the host's status strings.
	Status string
	// Message is an optional human-readable detail.
	Message string
}

// SessionInfo describes a session the host is already running, possibly
// started independently of this controller (e.g. by on-demand policy).
type SessionInfo struct {
	Protocol string
	Status   string
}

// Host is the control-plane interface to the privileged tunnel host.
// Implementations: DBusHost (production) and FakeHost (development and
// tests).
type Host interface {
	// SaveRegistration installs or replaces the registration for its
	// protocol. Returns common.ErrExtensionNotApproved when the user
	// has not approved the privileged extension.
	SaveRegistration(reg *Registration) error
	// RemoveRegistration removes the registration for the protocol.
	// Removing a missing registration is not an error.
	RemoveRegistration(protocol string) error
	// InstallTrustAnchor installs a CA certificate into the host's
	// trust store; commonName is the pinned expected issuer.
	InstallTrustAnchor(pem []byte, commonName string) error
	// StartTunnel asks the host to start the session registered for
	// the protocol.
	StartTunnel(protocol string) error
	// StopTunnel asks the host to tear the session down. Stopping a
	// protocol with no running session is not an error.
	StopTunnel(protocol string) error
	// ActiveSession reports a session the host is already running.
	ActiveSession() (*SessionInfo, bool)
	// Notifications returns the stream of asynchronous status changes.
	Notifications() <-chan StatusNotification
	// Close releases the connection to the host.
	Close() error
}
