// Package tunnelconfig turns protocol-specific textual templates into
// structured tunnel descriptors. Parsing is pure: no I/O, no side effects,
// deterministic output for identical input.
package tunnelconfig

import (
	"fmt"

	"github.com/ecarrera/vpn-core/common"
)

// Protocol tags used in templates, registrations, and account keys.
const (
	TagOpenVPN = "OPENVPN"
	TagIKEv2   = "IKEV2"
)

// Descriptor is a protocol-specific structured configuration derived from
// a template. Descriptors are immutable after construction.
type Descriptor interface {
	// Protocol returns the protocol tag of this descriptor.
	Protocol() string
	// Server returns the remote server address.
	Server() string
}

// Parse parses a template for the given protocol tag.
func Parse(template, protocol string) (Descriptor, error) {
	switch protocol {
	case TagOpenVPN:
		return ParseOpenVPN(template)
	case TagIKEv2:
		return ParseIKEv2(template)
	default:
		return nil, fmt.Errorf("%w: unknown protocol %q", common.ErrParse, protocol)
	}
}
