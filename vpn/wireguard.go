package vpn

import (
	"context"
	"fmt"

	"github.com/ecarrera/vpn-core/common"
	"github.com/ecarrera/vpn-core/statsbridge"
)

// WireGuardProvider is the reserved, unimplemented WireGuard variant.
// Every operation fails with ErrNotImplemented; it must never be treated
// as a silent no-op, and the session manager refuses to select it.
type WireGuardProvider struct{}

var _ Provider = (*WireGuardProvider)(nil)

// Kind implements Provider.
func (p *WireGuardProvider) Kind() ProtocolKind { return ProtocolWireGuard }

// LoadConfiguration implements Provider.
func (p *WireGuardProvider) LoadConfiguration() error {
	return wireguardNotImplemented("LoadConfiguration")
}

// Connect implements Provider.
func (p *WireGuardProvider) Connect(ctx context.Context, cfg *ServerConfiguration) error {
	return wireguardNotImplemented("Connect")
}

// Disconnect implements Provider.
func (p *WireGuardProvider) Disconnect() error {
	return wireguardNotImplemented("Disconnect")
}

// UpdateStatus implements Provider.
func (p *WireGuardProvider) UpdateStatus(status ConnectionStatus) {
	log.Error("UpdateStatus on unimplemented WireGuard provider")
}

// DataCount implements Provider.
func (p *WireGuardProvider) DataCount() (*statsbridge.Snapshot, bool) {
	return nil, false
}

func wireguardNotImplemented(op string) error {
	return fmt.Errorf("%w: WireGuard %s", common.ErrNotImplemented, op)
}
