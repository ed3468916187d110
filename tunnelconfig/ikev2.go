package tunnelconfig

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ecarrera/vpn-core/common"
)

// IKEv2 authentication methods selected by the template's "type" field.
const (
	IKEv2AuthEAP  = "eap"
	IKEv2AuthCert = "cert"
	IKEv2AuthPSK  = "psk"
)

// IKEv2Descriptor is the structured form of an IKEv2 JSON template.
// Immutable after construction.
type IKEv2Descriptor struct {
	// ServerAddress is the remote server address. Mandatory.
	ServerAddress string `json:"server_address"`
	// Port is the IKE port (default 500).
	Port int `json:"port"`
	// RemoteID is the expected remote identity, defaults to the
	// server address.
	RemoteID string `json:"remote_id"`
	// LocalID is the local identity, if any.
	LocalID string `json:"local_id,omitempty"`
	// AuthMethod is one of IKEv2AuthEAP, IKEv2AuthCert, IKEv2AuthPSK.
	AuthMethod string `json:"auth_method"`
	// IKEProposals are the IKE SA proposals, normalized to a list.
	IKEProposals []string `json:"ike_proposals,omitempty"`
	// ESPProposals are the child SA proposals, normalized to a list.
	ESPProposals []string `json:"esp_proposals,omitempty"`
	// DPDSeconds is the dead-peer-detection interval, 0 when unset.
	DPDSeconds int `json:"dpd_seconds,omitempty"`
	// IPv6 enables IPv6 inside the tunnel.
	IPv6 bool `json:"ipv6"`
	// CACertPEM is an optional PEM trust-anchor certificate. When
	// present the provider installs it and pins the expected issuer
	// to its subject.
	CACertPEM string `json:"ca_cert_pem,omitempty"`
	// ExpectedIssuer is the pinned peer-certificate issuer, filled in
	// by the provider from the trust anchor's subject common name.
	ExpectedIssuer string `json:"expected_issuer,omitempty"`
}

// Protocol implements Descriptor.
func (d *IKEv2Descriptor) Protocol() string { return TagIKEv2 }

// Server implements Descriptor.
func (d *IKEv2Descriptor) Server() string { return d.ServerAddress }

// ikev2Template mirrors the external JSON wire format. The format is
// server-issued and may evolve: unknown fields are ignored, not rejected.
type ikev2Template struct {
	Remote struct {
		Addr   string `json:"addr"`
		Port   int    `json:"port"`
		ID     string `json:"id"`
		CACert string `json:"cacert"`
	} `json:"remote"`
	Local struct {
		ID string `json:"id"`
	} `json:"local"`
	Type        string       `json:"type"`
	IKEProposal stringOrList `json:"ike-proposal"`
	ESPProposal stringOrList `json:"esp-proposal"`
	IKEDPD      int          `json:"ike-dpd"`
	Flags       struct {
		IPv6 bool `json:"ipv6"`
	} `json:"flags"`
}

// stringOrList accepts either a single JSON string or an array of strings
// and normalizes both to a list.
type stringOrList []string

func (s *stringOrList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// ParseIKEv2 parses an IKEv2 JSON template.
func ParseIKEv2(template string) (*IKEv2Descriptor, error) {
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("%w: empty IKEv2 template", common.ErrParse)
	}

	var t ikev2Template
	if err := json.Unmarshal([]byte(template), &t); err != nil {
		return nil, fmt.Errorf("%w: malformed IKEv2 template: %v", common.ErrParse, err)
	}

	if t.Remote.Addr == "" {
		return nil, fmt.Errorf("%w: IKEv2 template missing remote.addr", common.ErrParse)
	}

	method, err := authMethod(t.Type)
	if err != nil {
		return nil, err
	}

	desc := &IKEv2Descriptor{
		ServerAddress: t.Remote.Addr,
		Port:          t.Remote.Port,
		RemoteID:      t.Remote.ID,
		LocalID:       t.Local.ID,
		AuthMethod:    method,
		IKEProposals:  t.IKEProposal,
		ESPProposals:  t.ESPProposal,
		DPDSeconds:    t.IKEDPD,
		IPv6:          t.Flags.IPv6,
		CACertPEM:     t.Remote.CACert,
	}
	if desc.Port == 0 {
		desc.Port = 500
	}
	if desc.RemoteID == "" {
		desc.RemoteID = desc.ServerAddress
	}

	return desc, nil
}

func authMethod(templateType string) (string, error) {
	switch templateType {
	case "", "ikev2-eap":
		return IKEv2AuthEAP, nil
	case "ikev2-cert":
		return IKEv2AuthCert, nil
	case "ikev2-psk":
		return IKEv2AuthPSK, nil
	default:
		return "", fmt.Errorf("%w: unknown IKEv2 type %q", common.ErrParse, templateType)
	}
}
