package platform

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ecarrera/vpn-core/common"
)

func newTestStore(t *testing.T) *RegistrationStore {
	t.Helper()
	store, err := OpenRegistrationStore(filepath.Join(t.TempDir(), "registrations.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRegistration(protocol string) *Registration {
	return &Registration{
		ID:            "reg-" + protocol,
		Protocol:      protocol,
		ServerAddress: "vpn.example.com",
		Descriptor:    []byte(`{"cipher":"AES-256-GCM"}`),
		Credential:    common.CredentialRef{Service: "group.test", Account: "alice-" + protocol},
		Scope:         "group.test",
		UpdatedAt:     time.Unix(1700000000, 0).UTC(),
	}
}

func TestRegistrationStore_SaveLoad(t *testing.T) {
	store := newTestStore(t)

	want := testRegistration("OPENVPN")
	if err := store.Save(want); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load("OPENVPN")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("registration mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistrationStore_SaveReplaces(t *testing.T) {
	store := newTestStore(t)

	first := testRegistration("IKEV2")
	if err := store.Save(first); err != nil {
		t.Fatal(err)
	}

	second := testRegistration("IKEV2")
	second.ID = "reg-replacement"
	second.ServerAddress = "other.example.com"
	if err := store.Save(second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load("IKEV2")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "reg-replacement" || got.ServerAddress != "other.example.com" {
		t.Errorf("Load() = %+v, want replacement", got)
	}
}

func TestRegistrationStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("OPENVPN")
	if !errors.Is(err, common.ErrNoRegistration) {
		t.Errorf("expected ErrNoRegistration, got %v", err)
	}
}

func TestRegistrationStore_Remove(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save(testRegistration("OPENVPN")); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove("OPENVPN"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("OPENVPN"); !errors.Is(err, common.ErrNoRegistration) {
		t.Errorf("expected ErrNoRegistration after Remove, got %v", err)
	}

	// Removing again is not an error.
	if err := store.Remove("OPENVPN"); err != nil {
		t.Errorf("Remove of missing registration returned %v, want nil", err)
	}
}

func TestRegistrationStore_ProtocolsAreIndependent(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save(testRegistration("OPENVPN")); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(testRegistration("IKEV2")); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove("OPENVPN"); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load("IKEV2"); err != nil {
		t.Errorf("IKEV2 registration should survive OPENVPN removal: %v", err)
	}
}

func TestFakeHost_ApprovalGate(t *testing.T) {
	host := NewFakeHost()
	host.SetApproved(false)

	err := host.SaveRegistration(testRegistration("OPENVPN"))
	if !errors.Is(err, common.ErrExtensionNotApproved) {
		t.Errorf("expected ErrExtensionNotApproved, got %v", err)
	}
}

func TestFakeHost_StartRequiresRegistration(t *testing.T) {
	host := NewFakeHost()

	if err := host.StartTunnel("OPENVPN"); !errors.Is(err, common.ErrNoRegistration) {
		t.Errorf("expected ErrNoRegistration, got %v", err)
	}

	if err := host.SaveRegistration(testRegistration("OPENVPN")); err != nil {
		t.Fatal(err)
	}
	if err := host.StartTunnel("OPENVPN"); err != nil {
		t.Fatal(err)
	}
	if host.Running() != "OPENVPN" {
		t.Errorf("Running() = %q, want OPENVPN", host.Running())
	}
}
