package vpn

import (
	"errors"
	"testing"

	"github.com/ecarrera/vpn-core/common"
)

func TestProtocolKindString(t *testing.T) {
	tests := []struct {
		kind ProtocolKind
		want string
	}{
		{ProtocolOpenVPN, "OpenVPN"},
		{ProtocolIKEv2, "IKEv2"},
		{ProtocolWireGuard, "WireGuard"},
		{ProtocolKind(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ProtocolKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestProtocolKindTag(t *testing.T) {
	tests := []struct {
		kind ProtocolKind
		want string
	}{
		{ProtocolOpenVPN, "OPENVPN"},
		{ProtocolIKEv2, "IKEV2"},
		{ProtocolWireGuard, "WIREGUARD"},
	}
	for _, tt := range tests {
		if got := tt.kind.Tag(); got != tt.want {
			t.Errorf("%s.Tag() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestProtocolKindSupported(t *testing.T) {
	if !ProtocolOpenVPN.Supported() {
		t.Error("OpenVPN should be supported")
	}
	if !ProtocolIKEv2.Supported() {
		t.Error("IKEv2 should be supported")
	}
	if ProtocolWireGuard.Supported() {
		t.Error("WireGuard must not report as supported")
	}
	if ProtocolKind(99).Supported() {
		t.Error("unknown kind must not report as supported")
	}
}

func TestParseProtocolKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ProtocolKind
		wantErr bool
	}{
		{"OPENVPN", ProtocolOpenVPN, false},
		{"openvpn", ProtocolOpenVPN, false},
		{"  OpenVPN  ", ProtocolOpenVPN, false},
		{"IKEV2", ProtocolIKEv2, false},
		{"ikev2", ProtocolIKEv2, false},
		{"wireguard", ProtocolWireGuard, false},
		{"l2tp", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseProtocolKind(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseProtocolKind(%q) expected error", tt.in)
			} else if !errors.Is(err, common.ErrInvalidConfiguration) {
				t.Errorf("ParseProtocolKind(%q) error = %v, want ErrInvalidConfiguration", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseProtocolKind(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProtocolKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
