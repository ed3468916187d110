// Package vpn implements the multi-protocol VPN session manager.
// This file contains the protocol enumeration and the server
// configuration record exchanged with the server directory.
package vpn

import (
	"fmt"
	"strings"

	"github.com/ecarrera/vpn-core/common"
	"github.com/ecarrera/vpn-core/tunnelconfig"
)

// ProtocolKind is the closed enumeration of tunnel protocols. WireGuard
// is recognized but unimplemented: operations on it fail explicitly,
// never silently no-op.
type ProtocolKind int

const (
	// ProtocolOpenVPN is the OpenVPN protocol.
	ProtocolOpenVPN ProtocolKind = iota
	// ProtocolIKEv2 is the IKEv2/IPsec protocol.
	ProtocolIKEv2
	// ProtocolWireGuard is reserved; no provider implements it yet.
	ProtocolWireGuard
)

// String returns a human-readable protocol name.
func (k ProtocolKind) String() string {
	switch k {
	case ProtocolOpenVPN:
		return "OpenVPN"
	case ProtocolIKEv2:
		return "IKEv2"
	case ProtocolWireGuard:
		return "WireGuard"
	default:
		return "Unknown"
	}
}

// Tag returns the protocol tag used in registrations, templates, and
// credential account keys.
func (k ProtocolKind) Tag() string {
	switch k {
	case ProtocolOpenVPN:
		return tunnelconfig.TagOpenVPN
	case ProtocolIKEv2:
		return tunnelconfig.TagIKEv2
	case ProtocolWireGuard:
		return "WIREGUARD"
	default:
		return "UNKNOWN"
	}
}

// Supported reports whether a working provider exists for the protocol.
func (k ProtocolKind) Supported() bool {
	switch k {
	case ProtocolOpenVPN, ProtocolIKEv2:
		return true
	default:
		return false
	}
}

// ParseProtocolKind parses a protocol tag or name, case-insensitively.
func ParseProtocolKind(s string) (ProtocolKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case tunnelconfig.TagOpenVPN:
		return ProtocolOpenVPN, nil
	case tunnelconfig.TagIKEv2:
		return ProtocolIKEv2, nil
	case "WIREGUARD":
		return ProtocolWireGuard, nil
	default:
		return 0, fmt.Errorf("%w: unknown protocol %q", common.ErrInvalidConfiguration, s)
	}
}

// ServerConfiguration identifies a remote endpoint together with the
// protocol-specific template issued by the server directory. It is
// immutable once passed in and owned by the caller. The password travels
// in transit only; it is moved into the credential store on connect and
// never persisted in configuration structures.
type ServerConfiguration struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Template string `json:"template"`
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"password"`
}
