// Package common provides shared constants, types, and utilities
// used across the VPN Core session manager.
package common

// CredentialRef is an opaque handle to a stored secret. It identifies the
// keyring service and account under which the secret lives and is the only
// credential artifact that may be embedded in tunnel registrations. The raw
// secret value must never appear in persisted or logged structures.
type CredentialRef struct {
	// Service is the keyring service (access scope) holding the secret.
	Service string `json:"service"`
	// Account is the account key within the service.
	Account string `json:"account"`
}

// CredentialStore defines the interface for credential storage.
// Implementations may use the system keyring, encrypted files, etc.
// The scope binds a secret's accessibility to the cooperating privileged
// process; it is an access-group boundary the store maps onto its backend.
type CredentialStore interface {
	// Store saves a secret under the given account key, replacing any
	// prior entry for the same key, and returns an opaque reference.
	Store(secret, accountKey, scope string) (*CredentialRef, error)
	// Get retrieves the secret stored under the account key.
	Get(accountKey, scope string) (string, error)
	// Erase removes the secret stored under the account key. Erasing a
	// missing entry is not an error.
	Erase(accountKey, scope string) error
}

// KeyValueStore is a minimal byte-oriented key-value surface. The
// statistics bridge uses a file-backed implementation shared between the
// controller and the privileged packet-processing process.
type KeyValueStore interface {
	// Get returns the value for key, or an error wrapping
	// ErrNoSuchKey if the key has never been set.
	Get(key string) ([]byte, error)
	// Set stores value under key.
	Set(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// Logger defines the interface for leveled logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}
