// Package keyring provides secure credential storage scoped to the
// access group shared with the privileged packet-processing process.
// It uses the system keyring when available, falling back to encrypted
// local file storage when not.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/hkdf"

	"github.com/ecarrera/vpn-core/common"
)

// Common errors returned by keyring operations.
var (
	ErrNotFound    = errors.New("credential not found")
	ErrUnavailable = errors.New("keyring service unavailable")
)

var log = common.Category("keyring")

// Keyring stores secrets under (scope, accountKey) pairs. The scope maps
// onto the keyring service name, which is how the secret's accessibility
// is bound to the cooperating privileged process.
//
// Every write removes any prior entry under the same account key first,
// so stale secrets never accumulate, and returns an opaque reference.
// Only references may be embedded in tunnel registrations.
type Keyring struct {
	mu         sync.Mutex
	useLocal   bool
	localStore map[string]string
	localFile  string
	localKey   []byte
}

// New creates a Keyring, probing the system keyring once and switching
// to the encrypted local-file fallback when it is unavailable.
func New() *Keyring {
	k := &Keyring{}

	probe := "vpn-core-probe"
	if err := keyring.Set(common.AppID, probe, "probe"); err != nil {
		log.Warn("system keyring unavailable, using local fallback: %v", err)
		k.useLocal = true
		k.initLocal()
	} else {
		keyring.Delete(common.AppID, probe)
	}
	return k
}

var _ common.CredentialStore = (*Keyring)(nil)

// Store saves a secret under the given account key within the scope.
// Any previous entry under the same account key is removed first.
func (k *Keyring) Store(secret, accountKey, scope string) (*common.CredentialRef, error) {
	if accountKey == "" {
		return nil, fmt.Errorf("%w: empty account key", common.ErrCredentialStorage)
	}
	if secret == "" {
		return nil, fmt.Errorf("%w: empty secret", common.ErrCredentialStorage)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.useLocal {
		if err := k.storeLocal(localKey(scope, accountKey), secret); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
		}
		return &common.CredentialRef{Service: scope, Account: accountKey}, nil
	}

	// Remove any prior entry so writes never accumulate stale secrets.
	keyring.Delete(scope, accountKey)

	if err := keyring.Set(scope, accountKey, secret); err != nil {
		// Fall back to local storage for this and later operations.
		log.Warn("keyring write failed, switching to local fallback: %v", err)
		k.useLocal = true
		k.initLocal()
		if err := k.storeLocal(localKey(scope, accountKey), secret); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
		}
	}

	log.Debug("stored credential for account %s", accountKey)
	return &common.CredentialRef{Service: scope, Account: accountKey}, nil
}

// Get retrieves the secret stored under the account key within the scope.
func (k *Keyring) Get(accountKey, scope string) (string, error) {
	if accountKey == "" {
		return "", fmt.Errorf("%w: empty account key", common.ErrCredentialsNotFound)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.useLocal {
		secret, ok := k.localStore[localKey(scope, accountKey)]
		if !ok {
			return "", ErrNotFound
		}
		return secret, nil
	}

	secret, err := keyring.Get(scope, accountKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return secret, nil
}

// Erase removes the secret stored under the account key within the scope.
// Erasing a missing entry is not an error.
func (k *Keyring) Erase(accountKey, scope string) error {
	if accountKey == "" {
		return nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.useLocal {
		delete(k.localStore, localKey(scope, accountKey))
		return k.saveLocal()
	}

	if err := keyring.Delete(scope, accountKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// localKey joins scope and account into a single map key for the
// file-backed fallback, which has no service namespacing of its own.
func localKey(scope, accountKey string) string {
	return scope + "/" + accountKey
}

// Local encrypted-file fallback.

func (k *Keyring) initLocal() {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".config", common.ConfigDirName)
	os.MkdirAll(configDir, 0700)
	k.localFile = filepath.Join(configDir, ".credentials")
	k.localKey = deriveLocalKey()
	k.localStore = make(map[string]string)
	k.loadLocal()
}

// deriveLocalKey derives the fallback encryption key from machine-specific
// data via HKDF. The key never leaves the process and is stable across
// restarts on the same machine and user.
func deriveLocalKey() []byte {
	hostname, _ := os.Hostname()
	seed := fmt.Sprintf("%s-%s-%d", hostname, machineID(), os.Getuid())

	r := hkdf.New(sha256.New, []byte(seed), []byte(common.AppID), []byte("credential-store"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		// HKDF over sha256 cannot fail for a 32-byte read; keep a
		// deterministic key anyway rather than panicking.
		sum := sha256.Sum256([]byte(seed))
		return sum[:]
	}
	return key
}

func machineID() string {
	data, err := os.ReadFile("/etc/machine-id")
	if err == nil {
		return strings.TrimSpace(string(data))
	}
	return "default-machine-id"
}

func (k *Keyring) loadLocal() {
	data, err := os.ReadFile(k.localFile)
	if err != nil {
		return
	}

	decrypted, err := k.decrypt(data)
	if err != nil {
		log.Warn("could not decrypt local credential store, starting empty")
		return
	}

	json.Unmarshal(decrypted, &k.localStore)
}

func (k *Keyring) storeLocal(key, secret string) error {
	k.localStore[key] = secret
	return k.saveLocal()
}

func (k *Keyring) saveLocal() error {
	data, err := json.Marshal(k.localStore)
	if err != nil {
		return err
	}

	encrypted, err := k.encrypt(data)
	if err != nil {
		return err
	}

	return os.WriteFile(k.localFile, encrypted, 0600)
}

func (k *Keyring) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(k.localKey)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func (k *Keyring) decrypt(data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(k.localKey)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
