package vpn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ecarrera/vpn-core/common"
	"github.com/ecarrera/vpn-core/platform"
	"github.com/ecarrera/vpn-core/statsbridge"
	"github.com/ecarrera/vpn-core/tunnelconfig"
)

// OpenVPNProvider drives OpenVPN sessions through the privileged host.
type OpenVPNProvider struct {
	env providerEnv

	mu         sync.Mutex
	loaded     bool
	reg        *platform.Registration
	connecting bool
	serverID   string
	status     ConnectionStatus
}

var _ Provider = (*OpenVPNProvider)(nil)

func newOpenVPNProvider(env providerEnv) *OpenVPNProvider {
	return &OpenVPNProvider{env: env}
}

// Kind implements Provider.
func (p *OpenVPNProvider) Kind() ProtocolKind { return ProtocolOpenVPN }

// LoadConfiguration implements Provider. A missing persisted
// registration is not an error: an empty one is prepared instead.
func (p *OpenVPNProvider) LoadConfiguration() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	reg, err := p.env.store.Load(tunnelconfig.TagOpenVPN)
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
func (p *OpenVPNProvider) Connect(ctx context.Context, cfg *ServerConfiguration) error {
	p.mu.Lock()
	if !p.loaded {
		p.mu.Unlock()
		return common.ErrConfigurationNotLoaded
	}
	if p.connecting && p.serverID == cfg.ID {
		// Repeated connect for the same configuration while already
		// connecting is a no-op.
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

func (p *OpenVPNProvider) connect(ctx context.Context, cfg *ServerConfiguration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	desc, err := tunnelconfig.ParseOpenVPN(cfg.Template)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfiguration, err)
	}

	accountKey := cfg.Username + common.AccountSuffixOpenVPN
	ref, err := p.env.creds.Store(cfg.Password, accountKey, p.env.scope)
	if err != nil {
		return err
	}

	descriptor, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfiguration, err)
	}

	reg := &platform.Registration{
		ID:            uuid.NewString(),
		Protocol:      tunnelconfig.TagOpenVPN,
		ServerAddress: desc.Remote,
		Descriptor:    descriptor,
		Credential:    *ref,
		Scope:         p.env.scope,
	}
	if err := p.env.registerAndStart(reg); err != nil {
		return err
	}

	p.mu.Lock()
	p.reg = reg
	p.mu.Unlock()
	log.Info("OpenVPN session requested for %s", desc.Remote)
	return nil
}

// Disconnect implements Provider. Safe to call when no tunnel is active.
func (p *OpenVPNProvider) Disconnect() error {
	p.mu.Lock()
	p.connecting = false
	p.mu.Unlock()
	return p.env.host.StopTunnel(tunnelconfig.TagOpenVPN)
}

// UpdateStatus implements Provider.
func (p *OpenVPNProvider) UpdateStatus(status ConnectionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
	if status == StatusConnected || status == StatusDisconnected {
		p.connecting = false
	}
}

// DataCount implements Provider.
func (p *OpenVPNProvider) DataCount() (*statsbridge.Snapshot, bool) {
	return p.env.stats.Latest()
}
