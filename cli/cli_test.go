package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ecarrera/vpn-core/common"
	"github.com/ecarrera/vpn-core/config"
	"github.com/ecarrera/vpn-core/directory"
	"github.com/ecarrera/vpn-core/platform"
	"github.com/ecarrera/vpn-core/vpn"
)

const openVPNTemplate = `remote vpn1.example.net 1194
proto udp
cipher AES-256-GCM
auth-user-pass
`

// memCreds is a minimal in-memory CredentialStore for CLI tests.
type memCreds struct {
	mu      sync.Mutex
	secrets map[string]string
}

func (m *memCreds) Store(secret, accountKey, scope string) (*common.CredentialRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.secrets == nil {
		m.secrets = make(map[string]string)
	}
	m.secrets[scope+"/"+accountKey] = secret
	return &common.CredentialRef{Service: scope, Account: accountKey}, nil
}

func (m *memCreds) Get(accountKey, scope string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	secret, ok := m.secrets[scope+"/"+accountKey]
	if !ok {
		return "", fmt.Errorf("no secret for %s", accountKey)
	}
	return secret, nil
}

func (m *memCreds) Erase(accountKey, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, scope+"/"+accountKey)
	return nil
}

func newTestCLI(t *testing.T) (*CLI, *platform.FakeHost) {
	t.Helper()

	host := platform.NewFakeHost()
	store, err := platform.OpenRegistrationStore(filepath.Join(t.TempDir(), "registrations.db"))
	if err != nil {
		t.Fatalf("OpenRegistrationStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.DefaultConfig()
	cfg.AccessScope = "group.test.shared"
	cfg.SharedDir = t.TempDir()

	manager, err := vpn.NewManager(cfg, host, store, &memCreds{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { manager.Close() })

	return &CLI{
		cfg:       cfg,
		manager:   manager,
		directory: &directory.Client{},
		store:     store,
		host:      host,
	}, host
}

func TestDisconnectWithoutSession(t *testing.T) {
	c, _ := newTestCLI(t)

	if err := c.Disconnect(context.Background()); !errors.Is(err, common.ErrNotConnected) {
		t.Errorf("Disconnect = %v, want ErrNotConnected", err)
	}
}

func TestConnectWhileConnected(t *testing.T) {
	c, host := newTestCLI(t)

	serverCfg := &vpn.ServerConfiguration{
		ID:       "srv-1",
		Name:     "Test Server",
		Protocol: "OPENVPN",
		Template: openVPNTemplate,
		Username: "alice",
		Password: "hunter2",
	}
	if err := c.manager.Connect(context.Background(), serverCfg, vpn.ProtocolOpenVPN); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	host.EmitStatus("OPENVPN", platform.StatusConnected, "")

	deadline := time.Now().Add(2 * time.Second)
	for {
		if status, _ := c.manager.Status(); status == vpn.StatusConnected {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session never reached connected")
		}
		time.Sleep(5 * time.Millisecond)
	}

	err := c.Connect(context.Background(), "srv-2", "ikev2")
	if !errors.Is(err, common.ErrAlreadyConnected) {
		t.Errorf("Connect while connected = %v, want ErrAlreadyConnected", err)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
