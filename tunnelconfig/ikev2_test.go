package tunnelconfig

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ecarrera/vpn-core/common"
)

func TestParseIKEv2(t *testing.T) {
	template := `{
		"remote": {"addr": "ike.example.com", "port": 4500, "id": "vpn.example.com"},
		"local": {"id": "client@example.com"},
		"type": "ikev2-eap",
		"ike-proposal": ["aes256-sha256-modp2048", "aes128-sha1-modp1024"],
		"esp-proposal": "aes256gcm16",
		"ike-dpd": 30,
		"flags": {"ipv6": true}
	}`

	got, err := ParseIKEv2(template)
	if err != nil {
		t.Fatal(err)
	}

	want := &IKEv2Descriptor{
		ServerAddress: "ike.example.com",
		Port:          4500,
		RemoteID:      "vpn.example.com",
		LocalID:       "client@example.com",
		AuthMethod:    IKEv2AuthEAP,
		IKEProposals:  []string{"aes256-sha256-modp2048", "aes128-sha1-modp1024"},
		ESPProposals:  []string{"aes256gcm16"},
		DPDSeconds:    30,
		IPv6:          true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestParseIKEv2_ProposalNormalization(t *testing.T) {
	// A single string and a one-element array must normalize to
	// equal descriptors.
	asString := `{"remote":{"addr":"h"},"ike-proposal":"aes256-sha256-modp2048"}`
	asArray := `{"remote":{"addr":"h"},"ike-proposal":["aes256-sha256-modp2048"]}`

	fromString, err := ParseIKEv2(asString)
	if err != nil {
		t.Fatal(err)
	}
	fromArray, err := ParseIKEv2(asArray)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(fromString, fromArray); diff != "" {
		t.Errorf("string and array forms differ:\n%s", diff)
	}
}

func TestParseIKEv2_Defaults(t *testing.T) {
	got, err := ParseIKEv2(`{"remote":{"addr":"ike.example.com"}}`)
	if err != nil {
		t.Fatal(err)
	}

	if got.Port != 500 {
		t.Errorf("Port = %d, want default 500", got.Port)
	}
	if got.RemoteID != "ike.example.com" {
		t.Errorf("RemoteID = %q, want server address", got.RemoteID)
	}
	if got.AuthMethod != IKEv2AuthEAP {
		t.Errorf("AuthMethod = %q, want default eap", got.AuthMethod)
	}
}

func TestParseIKEv2_AuthMethods(t *testing.T) {
	tests := []struct {
		templateType string
		want         string
	}{
		{"ikev2-eap", IKEv2AuthEAP},
		{"ikev2-cert", IKEv2AuthCert},
		{"ikev2-psk", IKEv2AuthPSK},
	}

	for _, tt := range tests {
		t.Run(tt.templateType, func(t *testing.T) {
			got, err := ParseIKEv2(`{"remote":{"addr":"h"},"type":"` + tt.templateType + `"}`)
			if err != nil {
				t.Fatal(err)
			}
			if got.AuthMethod != tt.want {
				t.Errorf("AuthMethod = %q, want %q", got.AuthMethod, tt.want)
			}
		})
	}
}

func TestParseIKEv2_UnknownFieldsIgnored(t *testing.T) {
	// The template format is external and may evolve: unknown fields
	// must be ignored, not rejected.
	template := `{"remote":{"addr":"h","future":"x"},"experimental":{"a":1}}`

	if _, err := ParseIKEv2(template); err != nil {
		t.Errorf("unknown fields should be ignored, got %v", err)
	}
}

func TestParseIKEv2_Errors(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{"empty", ""},
		{"malformed json", `{"remote":`},
		{"missing remote addr", `{"remote":{"port":500}}`},
		{"unknown type", `{"remote":{"addr":"h"},"type":"ikev2-carrier-pigeon"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIKEv2(tt.template)
			if !errors.Is(err, common.ErrParse) {
				t.Errorf("expected ErrParse, got %v", err)
			}
		})
	}
}
