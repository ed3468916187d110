package vpn

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ecarrera/vpn-core/common"
	"github.com/ecarrera/vpn-core/platform"
	"github.com/ecarrera/vpn-core/statsbridge"
	"github.com/ecarrera/vpn-core/tunnelconfig"
)

// IKEv2Provider drives IKEv2/IPsec sessions through the privileged host.
// The authentication method comes from the parsed template: EAP
// (username/password), certificate (pre-provisioned identity), or
// pre-shared key (fetched from the credential store under a distinct
// psk-<username> account).
type IKEv2Provider struct {
	env providerEnv

	mu         sync.Mutex
	loaded     bool
	reg        *platform.Registration
	connecting bool
	serverID   string
	status     ConnectionStatus
}

var _ Provider = (*IKEv2Provider)(nil)

func newIKEv2Provider(env providerEnv) *IKEv2Provider {
	return &IKEv2Provider{env: env}
}

// Kind implements Provider.
func (p *IKEv2Provider) Kind() ProtocolKind { return ProtocolIKEv2 }

// LoadConfiguration implements Provider.
func (p *IKEv2Provider) LoadConfiguration() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	reg, err := p.env.store.Load(tunnelconfig.TagIKEv2)
	switch {
	case errors.Is(err, common.ErrNoRegistration):
		p.reg = nil
	case err != nil:
		return fmt.Errorf("%w: %v", common.ErrConfigurationNotLoaded, err)
	default:
		p.reg = reg
	}
	p.loaded = true
	return nil
}

// Connect implements Provider.
func (p *IKEv2Provider) Connect(ctx context.Context, cfg *ServerConfiguration) error {
	p.mu.Lock()
	if !p.loaded {
		p.mu.Unlock()
		return common.ErrConfigurationNotLoaded
	}
	if p.connecting && p.serverID == cfg.ID {
		p.mu.Unlock()
		return nil
	}
	p.connecting = true
	p.serverID = cfg.ID
	p.mu.Unlock()

	err := p.connect(ctx, cfg)
	if err != nil {
		p.mu.Lock()
		p.connecting = false
		p.mu.Unlock()
	}
	return err
}

func (p *IKEv2Provider) connect(ctx context.Context, cfg *ServerConfiguration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	desc, err := tunnelconfig.ParseIKEv2(cfg.Template)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfiguration, err)
	}

	ref, err := p.credentialFor(desc, cfg)
	if err != nil {
		return err
	}

	if desc.CACertPEM != "" {
		if err := p.pinTrustAnchor(desc); err != nil {
			return err
		}
	}

	descriptor, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfiguration, err)
	}

	reg := &platform.Registration{
		ID:            uuid.NewString(),
		Protocol:      tunnelconfig.TagIKEv2,
		ServerAddress: desc.ServerAddress,
		Descriptor:    descriptor,
		Credential:    ref,
		Scope:         p.env.scope,
	}
	if err := p.env.registerAndStart(reg); err != nil {
		return err
	}

	p.mu.Lock()
	p.reg = reg
	p.mu.Unlock()
	log.Info("IKEv2 session requested for %s (%s auth)", desc.ServerAddress, desc.AuthMethod)
	return nil
}

// credentialFor resolves the credential reference for the descriptor's
// authentication method. Certificate auth uses a pre-provisioned
// identity and carries no stored secret.
func (p *IKEv2Provider) credentialFor(desc *tunnelconfig.IKEv2Descriptor, cfg *ServerConfiguration) (common.CredentialRef, error) {
	switch desc.AuthMethod {
	case tunnelconfig.IKEv2AuthEAP:
		accountKey := cfg.Username + common.AccountSuffixIKEv2
		ref, err := p.env.creds.Store(cfg.Password, accountKey, p.env.scope)
		if err != nil {
			return common.CredentialRef{}, err
		}
		return *ref, nil
	case tunnelconfig.IKEv2AuthPSK:
		// The PSK is pre-provisioned under its own account so it never
		// collides with password-based auth for the same user.
		accountKey := common.AccountPrefixPSK + cfg.Username
		if _, err := p.env.creds.Get(accountKey, p.env.scope); err != nil {
			return common.CredentialRef{}, fmt.Errorf("%w: pre-shared key for %s: %v",
				common.ErrCredentialsNotFound, cfg.Username, err)
		}
		return common.CredentialRef{Service: p.env.scope, Account: accountKey}, nil
	case tunnelconfig.IKEv2AuthCert:
		return common.CredentialRef{}, nil
	default:
		return common.CredentialRef{}, fmt.Errorf("%w: auth method %q",
			common.ErrInvalidConfiguration, desc.AuthMethod)
	}
}

// pinTrustAnchor decodes the template's PEM CA certificate, installs it
// into the platform trust store, and pins the expected peer-certificate
// issuer to the certificate's subject common name. Trust is thereby
// bound to the expected authority instead of any system-trusted CA.
func (p *IKEv2Provider) pinTrustAnchor(desc *tunnelconfig.IKEv2Descriptor) error {
	block, _ := pem.Decode([]byte(desc.CACertPEM))
	if block == nil {
		return fmt.Errorf("%w: cacert is not valid PEM", common.ErrInvalidConfiguration)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return fmt.Errorf("%w: cacert: %v", common.ErrInvalidConfiguration, err)
	}

	cn := cert.Subject.CommonName
	if err := p.env.host.InstallTrustAnchor([]byte(desc.CACertPEM), cn); err != nil {
		return translateHostError(err)
	}
	desc.ExpectedIssuer = cn
	return nil
}

// Disconnect implements Provider. Safe to call when no tunnel is active.
func (p *IKEv2Provider) Disconnect() error {
	p.mu.Lock()
	p.connecting = false
	p.mu.Unlock()
	return p.env.host.StopTunnel(tunnelconfig.TagIKEv2)
}

// UpdateStatus implements Provider.
func (p *IKEv2Provider) UpdateStatus(status ConnectionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
	if status == StatusConnected || status == StatusDisconnected {
		p.connecting = false
	}
}

// DataCount implements Provider.
func (p *IKEv2Provider) DataCount() (*statsbridge.Snapshot, bool) {
	return p.env.stats.Latest()
}
