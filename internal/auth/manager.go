// Package auth resolves the console password for a profile from the profile
// file, the environment or the OS keyring, and stores passwords in the keyring.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/99designs/keyring"

	"github.com/universal-console/dgdconsole/internal/interfaces"
	"github.com/universal-console/dgdconsole/internal/logging"
)

// ServiceName identifies our keyring namespace
const ServiceName = "dgdconsole"

// PasswordEnvVar is read when a profile's password source is "env"
const PasswordEnvVar = "DGD_PASSWORD"

// ErrNotFound is returned when secure storage has no value for a key
var ErrNotFound = errors.New("secret not found")

// SecureStorage abstracts where secrets are kept
type SecureStorage interface {
	Store(key, value string) error
	Retrieve(key string) (string, error)
	Delete(key string) error
	Exists(key string) bool
}

// Manager implements interfaces.AuthManager
type Manager struct {
	storage SecureStorage
	lookup  func(string) (string, bool)
	logger  *logging.Logger
}

// NewManager creates an auth manager backed by storage
func NewManager(storage SecureStorage) (*Manager, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	return &Manager{
		storage: storage,
		lookup:  os.LookupEnv,
		logger:  logging.GetAuthLogger(),
	}, nil
}

// WithEnvironment replaces the environment lookup, for tests
func (m *Manager) WithEnvironment(lookup func(string) (string, bool)) *Manager {
	m.lookup = lookup
	return m
}

// PasswordKey is the storage key of a profile's password
func PasswordKey(profileName string) string {
	return "password:" + profileName
}

// ResolvePassword returns the password for profile according to its source.
func (m *Manager) ResolvePassword(profile *interfaces.Profile) (string, error) {
	if profile == nil {
		return "", fmt.Errorf("profile cannot be nil")
	}

	source := profile.Auth.PasswordSource
	if source == "" {
		source = "config"
	}
	m.logger.LogAuthOperation("resolve", source)

	var password string
	switch source {
	case "config":
		password = profile.Auth.Password

	case "env":
		value, ok := m.lookup(PasswordEnvVar)
		if !ok {
			return "", fmt.Errorf("%s is not set", PasswordEnvVar)
		}
		password = value

	case "keyring":
		value, err := m.storage.Retrieve(PasswordKey(profile.Name))
		if err != nil {
			return "", fmt.Errorf("no password stored for profile '%s': %w", profile.Name, err)
		}
		password = value

	default:
		return "", fmt.Errorf("unsupported password source: %s", source)
	}

	if err := m.ValidateCredentials(profile.Auth.Username, password); err != nil {
		return "", err
	}
	return password, nil
}

// StorePassword saves a profile's password in secure storage
func (m *Manager) StorePassword(profileName string, password string) error {
	if strings.TrimSpace(profileName) == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if strings.ContainsAny(password, "\r\n") {
		return fmt.Errorf("password cannot contain line breaks")
	}

	m.logger.LogAuthOperation("store", "keyring")
	if err := m.storage.Store(PasswordKey(profileName), password); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}
	return nil
}

// DeletePassword removes a profile's stored password
func (m *Manager) DeletePassword(profileName string) error {
	m.logger.LogAuthOperation("delete", "keyring")
	return m.storage.Delete(PasswordKey(profileName))
}

// HasStoredPassword reports whether a password is stored for a profile
func (m *Manager) HasStoredPassword(profileName string) bool {
	return m.storage.Exists(PasswordKey(profileName))
}

// ValidateCredentials checks that both values can be sent as single console lines
func (m *Manager) ValidateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return fmt.Errorf("username cannot contain whitespace")
	}
	if strings.ContainsAny(password, "\r\n") {
		return fmt.Errorf("password cannot contain line breaks")
	}
	return nil
}

// KeyringStorage stores secrets in the OS keyring
type KeyringStorage struct {
	mutex sync.RWMutex
	ring  keyring.Keyring
}

// OpenKeyringStorage opens the platform keyring for ServiceName
func OpenKeyringStorage() (*KeyringStorage, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              ServiceName,
		KeychainTrustApplication: true,
		LibSecretCollectionName:  ServiceName,
		KWalletAppID:             ServiceName,
		KWalletFolder:            ServiceName,
		WinCredPrefix:            ServiceName,
		PassPrefix:               ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return NewKeyringStorage(ring), nil
}

// NewKeyringStorage wraps an already opened keyring
func NewKeyringStorage(ring keyring.Keyring) *KeyringStorage {
	return &KeyringStorage{ring: ring}
}

// Store implements SecureStorage.Store
func (s *KeyringStorage) Store(key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: ServiceName + " " + key,
	})
}

// Retrieve implements SecureStorage.Retrieve
func (s *KeyringStorage) Retrieve(key string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(item.Data), nil
}

// Delete implements SecureStorage.Delete
func (s *KeyringStorage) Delete(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	err := s.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Exists implements SecureStorage.Exists
func (s *KeyringStorage) Exists(key string) bool {
	_, err := s.Retrieve(key)
	return err == nil
}

// InMemorySecureStorage keeps secrets for the lifetime of the process
type InMemorySecureStorage struct {
	data  map[string]string
	mutex sync.RWMutex
}

// NewInMemorySecureStorage creates an empty in-memory store
func NewInMemorySecureStorage() *InMemorySecureStorage {
	return &InMemorySecureStorage{data: make(map[string]string)}
}

// Store implements SecureStorage.Store
func (s *InMemorySecureStorage) Store(key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data[key] = value
	return nil
}

// Retrieve implements SecureStorage.Retrieve
func (s *InMemorySecureStorage) Retrieve(key string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, exists := s.data[key]
	if !exists {
		return "", ErrNotFound
	}
	return value, nil
}

// Delete implements SecureStorage.Delete
func (s *InMemorySecureStorage) Delete(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.data, key)
	return nil
}

// Exists implements SecureStorage.Exists
func (s *InMemorySecureStorage) Exists(key string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, exists := s.data[key]
	return exists
}
