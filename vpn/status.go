package vpn

import (
	"github.com/ecarrera/vpn-core/platform"
)

// ConnectionStatus represents the current state of the VPN session.
// Exactly one status is current at any time; transitions arrive
// asynchronously from the platform and are applied atomically.
type ConnectionStatus int

const (
	// StatusDisconnected indicates no active session. Initial and
	// terminal state.
	StatusDisconnected ConnectionStatus = iota
	// StatusConnecting indicates a session is being established.
	StatusConnecting
	// StatusConnected indicates an active, established session.
	StatusConnected
	// StatusDisconnecting indicates the session is being torn down.
	StatusDisconnecting
	// StatusReasserting indicates the tunnel is re-establishing after
	// a network change.
	StatusReasserting
	// StatusInvalid indicates a malformed registration or an unknown
	// platform state. Terminal until retried.
	StatusInvalid
)

// String returns a human-readable representation of the status.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusDisconnecting:
		return "Disconnecting..."
	case StatusReasserting:
		return "Reasserting..."
	case StatusInvalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// IsActive reports whether the status corresponds to a live or
// in-progress session. True exactly for connecting, connected, and
// reasserting.
func (s ConnectionStatus) IsActive() bool {
	switch s {
	case StatusConnecting, StatusConnected, StatusReasserting:
		return true
	default:
		return false
	}
}

// statusFromPlatform translates the platform host's status vocabulary.
// Unknown values degrade to StatusInvalid rather than crashing; the
// caller logs the degradation.
func statusFromPlatform(s string) (ConnectionStatus, bool) {
	switch s {
	case platform.StatusDisconnected:
		return StatusDisconnected, true
	case platform.StatusConnecting:
		return StatusConnecting, true
	case platform.StatusConnected:
		return StatusConnected, true
	case platform.StatusDisconnecting:
		return StatusDisconnecting, true
	case platform.StatusReasserting:
		return StatusReasserting, true
	case platform.StatusInvalid:
		return StatusInvalid, true
	default:
		return StatusInvalid, false
	}
}
