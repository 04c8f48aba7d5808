package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"auth-bootstrap/internal/util"
)

// Storage keys, kept bit-compatible with the web revisions of this layer so
// a device upgraded in place keeps its offline record.
const (
	KeyUserAuthenticated = "userAuthenticated"
	KeyUserName          = "authenticatedUserName"
	KeyUserEmail         = "authenticatedUserEmail"
	KeyEmailForSignIn    = "emailForSignIn"
	KeyPendingPhoneUser  = "pendingPhoneUser"
)

const stateFile = "credentials.json"

// Store is a small persisted key/value record on the device. The
// userAuthenticated flag is the offline shortcut: once set, it alone
// authorizes handoff until an explicit sign-out clears it.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore opens (or creates) the credential record under dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	return &Store{path: filepath.Join(dir, stateFile)}, nil
}

// ReadOfflineAuth reports whether a previously authenticated user is recorded
// locally, along with the cached display name. Pure read, no side effect.
func (s *Store) ReadOfflineAuth() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.load()
	if record[KeyUserAuthenticated] != "true" {
		return false, ""
	}
	name := record[KeyUserName]
	if name == "" {
		return false, ""
	}
	return true, name
}

// MarkAuthenticated persists the offline shortcut after a profile lookup has
// been attempted for a live session.
func (s *Store) MarkAuthenticated(name, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.load()
	record[KeyUserAuthenticated] = "true"
	record[KeyUserName] = name
	if email != "" {
		record[KeyUserEmail] = email
	}
	return s.save(record)
}

// Clear removes the offline record and any transient challenge state.
// Called on explicit sign-out.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear credential store: %w", err)
	}
	return nil
}

// GetTransient reads a short-lived key (emailForSignIn, pendingPhoneUser).
func (s *Store) GetTransient(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()[key]
}

// SetTransient records a short-lived key for crash recovery of an in-flight
// challenge.
func (s *Store) SetTransient(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.load()
	record[key] = value
	return s.save(record)
}

// DeleteTransient drops a short-lived key once its challenge is consumed.
func (s *Store) DeleteTransient(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.load()
	if _, ok := record[key]; !ok {
		return nil
	}
	delete(record, key)
	return s.save(record)
}

func (s *Store) load() map[string]string {
	record := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			util.Warn("Failed to read credential store", zap.Error(err))
		}
		return record
	}
	if err := json.Unmarshal(data, &record); err != nil {
		// A corrupted record is treated as absent rather than fatal.
		util.Warn("Credential store corrupted, starting fresh", zap.Error(err))
		return make(map[string]string)
	}
	return record
}

func (s *Store) save(record map[string]string) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credential store: %w", err)
	}
	return nil
}
