package tunnelconfig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ecarrera/vpn-core/common"
)

// OpenVPNDescriptor is the structured form of an OpenVPN configuration
// template. Immutable after construction.
type OpenVPNDescriptor struct {
	// Remote is the server host name or address.
	Remote string `json:"remote"`
	// Port is the server port (default 1194).
	Port int `json:"port"`
	// Transport is the transport protocol ("udp" or "tcp").
	Transport string `json:"transport"`
	// Cipher is the data-channel cipher.
	Cipher string `json:"cipher"`
	// Compression holds the negotiated compression framing
	// ("lzo", "stub", ...), empty when the template names none.
	Compression string `json:"compression,omitempty"`
	// Obfuscation holds the traffic obfuscation method, if any.
	Obfuscation string `json:"obfuscation,omitempty"`
	// AuthUserPass is always true: this system supplies interactive
	// credentials separately, so username/password authentication is
	// forced regardless of template hints.
	AuthUserPass bool `json:"auth_user_pass"`
}

// Protocol implements Descriptor.
func (d *OpenVPNDescriptor) Protocol() string { return TagOpenVPN }

// Server implements Descriptor.
func (d *OpenVPNDescriptor) Server() string { return d.Remote }

// ParseOpenVPN parses a line-oriented OpenVPN configuration template.
// The template must name a remote and a cipher; comments (# or ;) and
// unknown directives are ignored.
func ParseOpenVPN(template string) (*OpenVPNDescriptor, error) {
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("%w: empty OpenVPN template", common.ErrParse)
	}

	desc := &OpenVPNDescriptor{
		Port:         1194,
		Transport:    "udp",
		AuthUserPass: true,
	}

	for _, raw := range strings.Split(template, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		fields := strings.Fields(line)
		directive := strings.ToLower(fields[0])
		args := fields[1:]

		switch directive {
		case "remote":
			if len(args) == 0 {
				return nil, fmt.Errorf("%w: remote directive without host", common.ErrParse)
			}
			desc.Remote = args[0]
			if len(args) > 1 {
				port, err := strconv.Atoi(args[1])
				if err != nil || port <= 0 || port > 65535 {
					return nil, fmt.Errorf("%w: invalid remote port %q", common.ErrParse, args[1])
				}
				desc.Port = port
			}
			if len(args) > 2 {
				desc.Transport = strings.ToLower(args[2])
			}
		case "proto":
			if len(args) > 0 {
				desc.Transport = strings.ToLower(args[0])
			}
		case "cipher", "data-ciphers":
			if len(args) > 0 {
				desc.Cipher = args[0]
			}
		case "comp-lzo":
			desc.Compression = "lzo"
		case "compress":
			if len(args) > 0 {
				desc.Compression = strings.ToLower(args[0])
			} else {
				desc.Compression = "stub"
			}
		case "scramble", "obfuscate":
			// xormask-style obfuscation; keep the whole method string.
			desc.Obfuscation = strings.Join(append([]string{directive}, args...), " ")
		case "auth-user-pass":
			// Already forced on; the directive (with or without an
			// inline credentials file) is acknowledged but the file
			// argument is discarded.
		}
	}

	if desc.Remote == "" {
		return nil, fmt.Errorf("%w: OpenVPN template missing remote", common.ErrParse)
	}
	if desc.Cipher == "" {
		return nil, fmt.Errorf("%w: OpenVPN template missing cipher", common.ErrParse)
	}

	return desc, nil
}
