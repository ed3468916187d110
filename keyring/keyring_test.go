package keyring

import (
	"errors"
	"testing"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/ecarrera/vpn-core/common"
)

const testScope = "group.vpn-core.test"

func newTestKeyring(t *testing.T) *Keyring {
	t.Helper()
	gokeyring.MockInit()
	return New()
}

func TestKeyring_StoreReturnsReference(t *testing.T) {
	k := newTestKeyring(t)

	ref, err := k.Store("s3cret", "alice-OPENVPN", testScope)
	if err != nil {
		t.Fatal(err)
	}
	if ref.Service != testScope {
		t.Errorf("ref.Service = %q, want %q", ref.Service, testScope)
	}
	if ref.Account != "alice-OPENVPN" {
		t.Errorf("ref.Account = %q, want %q", ref.Account, "alice-OPENVPN")
	}

	secret, err := k.Get("alice-OPENVPN", testScope)
	if err != nil {
		t.Fatal(err)
	}
	if secret != "s3cret" {
		t.Errorf("Get() = %q, want %q", secret, "s3cret")
	}
}

func TestKeyring_StoreReplacesPriorEntry(t *testing.T) {
	k := newTestKeyring(t)

	if _, err := k.Store("old", "alice-IKEV2", testScope); err != nil {
		t.Fatal(err)
	}
	if _, err := k.Store("new", "alice-IKEV2", testScope); err != nil {
		t.Fatal(err)
	}

	secret, err := k.Get("alice-IKEV2", testScope)
	if err != nil {
		t.Fatal(err)
	}
	if secret != "new" {
		t.Errorf("Get() = %q, want replacement value", secret)
	}
}

func TestKeyring_ScopesAreIndependent(t *testing.T) {
	k := newTestKeyring(t)

	if _, err := k.Store("one", "alice-OPENVPN", "scope-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := k.Store("two", "alice-OPENVPN", "scope-b"); err != nil {
		t.Fatal(err)
	}

	got, err := k.Get("alice-OPENVPN", "scope-a")
	if err != nil {
		t.Fatal(err)
	}
	if got != "one" {
		t.Errorf("scope-a secret = %q, want %q", got, "one")
	}
}

func TestKeyring_EraseMissingIsNotAnError(t *testing.T) {
	k := newTestKeyring(t)

	if err := k.Erase("nobody-OPENVPN", testScope); err != nil {
		t.Errorf("Erase of missing entry returned %v, want nil", err)
	}
}

func TestKeyring_GetMissing(t *testing.T) {
	k := newTestKeyring(t)

	_, err := k.Get("nobody-IKEV2", testScope)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestKeyring_RejectsEmptyInput(t *testing.T) {
	k := newTestKeyring(t)

	if _, err := k.Store("", "alice-OPENVPN", testScope); !errors.Is(err, common.ErrCredentialStorage) {
		t.Errorf("empty secret: expected ErrCredentialStorage, got %v", err)
	}
	if _, err := k.Store("x", "", testScope); !errors.Is(err, common.ErrCredentialStorage) {
		t.Errorf("empty account: expected ErrCredentialStorage, got %v", err)
	}
}
