package vpn

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecarrera/vpn-core/common"
	"github.com/ecarrera/vpn-core/platform"
	"github.com/ecarrera/vpn-core/statsbridge"
)

var log = common.Category("vpn")

// Provider is the uniform contract every protocol variant implements.
// At most one provider is active per session.
type Provider interface {
	// Kind returns the protocol this provider implements.
	Kind() ProtocolKind
	// LoadConfiguration loads any previously persisted tunnel
	// registration for this protocol, or prepares an empty one.
	LoadConfiguration() error
	// Connect parses the template, stores the credential, registers
	// the tunnel with the privileged host, and requests a start.
	// Idempotent with respect to repeated calls for the same
	// configuration while already connecting.
	Connect(ctx context.Context, cfg *ServerConfiguration) error
	// Disconnect requests tunnel teardown. Safe to call when no
	// tunnel is active.
	Disconnect() error
	// UpdateStatus is a passive sink invoked by the session manager
	// on every status change.
	UpdateStatus(status ConnectionStatus)
	// DataCount returns the most recent published statistics for this
	// provider's session, or false if none have been published.
	DataCount() (*statsbridge.Snapshot, bool)
}

// providerEnv carries the collaborators shared by all providers.
type providerEnv struct {
	host  platform.Host
	store *platform.RegistrationStore
	creds common.CredentialStore
	stats *statsbridge.Reader
	scope string
}

// newProvider constructs the provider for kind. Selecting an
// unimplemented protocol returns ErrNotImplemented: a non-functional
// protocol must never be silently downgraded to a no-op.
func newProvider(kind ProtocolKind, env providerEnv) (Provider, error) {
	switch kind {
	case ProtocolOpenVPN:
		return newOpenVPNProvider(env), nil
	case ProtocolIKEv2:
		return newIKEv2Provider(env), nil
	case ProtocolWireGuard:
		return nil, fmt.Errorf("%w: WireGuard", common.ErrNotImplemented)
	default:
		return nil, fmt.Errorf("%w: protocol %d", common.ErrNotImplemented, kind)
	}
}

// registerAndStart persists the registration, installs it with the
// privileged host, and requests a session start. Shared by the working
// providers.
func (env providerEnv) registerAndStart(reg *platform.Registration) error {
	if err := env.store.Save(reg); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConnectionFailed, err)
	}
	if err := env.host.SaveRegistration(reg); err != nil {
		return translateHostError(err)
	}
	if err := env.host.StartTunnel(reg.Protocol); err != nil {
		return translateHostError(err)
	}
	return nil
}

// translateHostError keeps the distinguished approval error intact and
// wraps everything else as a connection failure.
func translateHostError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrExtensionNotApproved) {
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrConnectionFailed, err)
}
