package platform

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ecarrera/vpn-core/common"
)

// RegistrationStore persists tunnel registrations across controller
// restarts, one per protocol. Providers load their previously persisted
// registration from here before connecting.
type RegistrationStore struct {
	db *sql.DB
}

const registrationsSchema = `
CREATE TABLE IF NOT EXISTS registrations (
	protocol       TEXT PRIMARY KEY,
	id             TEXT NOT NULL,
	server_address TEXT NOT NULL,
	descriptor     BLOB NOT NULL,
	cred_service   TEXT NOT NULL,
	cred_account   TEXT NOT NULL,
	scope          TEXT NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);`

// OpenRegistrationStore opens (creating if needed) the registration
// database at path.
func OpenRegistrationStore(path string) (*RegistrationStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registration store: %w", err)
	}
	if _, err := db.Exec(registrationsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize registration store: %w", err)
	}
	return &RegistrationStore{db: db}, nil
}

// Save inserts or replaces the registration for its protocol.
func (s *RegistrationStore) Save(reg *Registration) error {
	if reg.Protocol == "" {
		return errors.New("registration has no protocol")
	}
	if reg.UpdatedAt.IsZero() {
		reg.UpdatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO registrations
			(protocol, id, server_address, descriptor, cred_service, cred_account, scope, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(protocol) DO UPDATE SET
			id = excluded.id,
			server_address = excluded.server_address,
			descriptor = excluded.descriptor,
			cred_service = excluded.cred_service,
			cred_account = excluded.cred_account,
			scope = excluded.scope,
			updated_at = excluded.updated_at`,
		reg.Protocol, reg.ID, reg.ServerAddress, reg.Descriptor,
		reg.Credential.Service, reg.Credential.Account, reg.Scope, reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save registration: %w", err)
	}
	return nil
}

// Load returns the persisted registration for the protocol, or an error
// wrapping common.ErrNoRegistration when none exists.
func (s *RegistrationStore) Load(protocol string) (*Registration, error) {
	reg := &Registration{}
	err := s.db.QueryRow(`
		SELECT protocol, id, server_address, descriptor, cred_service, cred_account, scope, updated_at
		FROM registrations WHERE protocol = ?`, protocol).Scan(
		&reg.Protocol, &reg.ID, &reg.ServerAddress, &reg.Descriptor,
		&reg.Credential.Service, &reg.Credential.Account, &reg.Scope, &reg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", common.ErrNoRegistration, protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	return reg, nil
}

// Remove deletes the registration for the protocol. Removing a missing
// registration is not an error.
func (s *RegistrationStore) Remove(protocol string) error {
	if _, err := s.db.Exec(`DELETE FROM registrations WHERE protocol = ?`, protocol); err != nil {
		return fmt.Errorf("failed to remove registration: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *RegistrationStore) Close() error {
	return s.db.Close()
}
