package tunnelconfig

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ecarrera/vpn-core/common"
)

func TestParseOpenVPN(t *testing.T) {
	template := `
# server-issued configuration
client
dev tun
remote vpn.example.com 443 tcp
cipher AES-256-GCM
comp-lzo
auth-user-pass /etc/openvpn/creds.txt
; trailing comment
`
	got, err := ParseOpenVPN(template)
	if err != nil {
		t.Fatal(err)
	}

	want := &OpenVPNDescriptor{
		Remote:       "vpn.example.com",
		Port:         443,
		Transport:    "tcp",
		Cipher:       "AES-256-GCM",
		Compression:  "lzo",
		AuthUserPass: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestParseOpenVPN_ForcesAuthUserPass(t *testing.T) {
	// No auth-user-pass directive at all: interactive credentials are
	// supplied separately, so the mode is forced on regardless.
	template := "remote vpn.example.com\ncipher AES-128-GCM\n"

	got, err := ParseOpenVPN(template)
	if err != nil {
		t.Fatal(err)
	}
	if !got.AuthUserPass {
		t.Error("AuthUserPass should be forced on")
	}
	if got.Port != 1194 {
		t.Errorf("Port = %d, want default 1194", got.Port)
	}
	if got.Transport != "udp" {
		t.Errorf("Transport = %q, want default udp", got.Transport)
	}
}

func TestParseOpenVPN_Obfuscation(t *testing.T) {
	template := "remote host.example.org 1194\ncipher AES-256-CBC\nscramble xormask 5\n"

	got, err := ParseOpenVPN(template)
	if err != nil {
		t.Fatal(err)
	}
	if got.Obfuscation != "scramble xormask 5" {
		t.Errorf("Obfuscation = %q, want full method string", got.Obfuscation)
	}
}

func TestParseOpenVPN_Errors(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{"empty", ""},
		{"whitespace only", "  \n\t\n"},
		{"missing remote", "cipher AES-256-GCM\n"},
		{"missing cipher", "remote vpn.example.com\n"},
		{"remote without host", "remote\ncipher AES-256-GCM\n"},
		{"bad port", "remote vpn.example.com nope\ncipher AES-256-GCM\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOpenVPN(tt.template)
			if !errors.Is(err, common.ErrParse) {
				t.Errorf("expected ErrParse, got %v", err)
			}
		})
	}
}

func TestParseOpenVPN_Deterministic(t *testing.T) {
	template := "remote a.example.net 1195\ncipher AES-256-GCM\ncompress lz4\n"

	first, err := ParseOpenVPN(template)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ParseOpenVPN(template)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("parsing is not deterministic:\n%s", diff)
	}
}

func TestParse_Dispatch(t *testing.T) {
	if _, err := Parse("remote h\ncipher c\n", TagOpenVPN); err != nil {
		t.Errorf("openvpn dispatch failed: %v", err)
	}
	if _, err := Parse(`{"remote":{"addr":"h"}}`, TagIKEv2); err != nil {
		t.Errorf("ikev2 dispatch failed: %v", err)
	}
	if _, err := Parse("x", "WIREGUARD"); !errors.Is(err, common.ErrParse) {
		t.Errorf("unknown protocol should fail with ErrParse, got %v", err)
	}
}
