package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// keyDerivationRounds is the pbkdf2 iteration count for the master key
const keyDerivationRounds = 100000

// encryptedPrefix marks a password field that holds ciphertext.
const encryptedPrefix = "enc:"

// SecurityManager encrypts console passwords kept in the profile file
type SecurityManager interface {
	// EncryptCredential encrypts a password for storage
	EncryptCredential(plaintext string) (string, error)

	// DecryptCredential decrypts a stored password
	DecryptCredential(ciphertext string) (string, error)

	// SecureKeyExists checks if encryption key material is available
	SecureKeyExists() bool

	// GenerateSecureKey creates new encryption key material
	GenerateSecureKey() error
}

// AESSecurityManager implements SecurityManager using AES-256-GCM encryption
type AESSecurityManager struct {
	keyPath    string
	masterKey  []byte
	keyDerived bool
}

// NewSecurityManager creates a security manager with the key in the
// OS-appropriate data directory.
func NewSecurityManager() (*AESSecurityManager, error) {
	keyPath, err := getSecurityKeyPath()
	if err != nil {
		return nil, fmt.Errorf("failed to determine security key path: %w", err)
	}
	return NewSecurityManagerAt(keyPath)
}

// NewSecurityManagerAt creates a security manager whose salt lives at keyPath
func NewSecurityManagerAt(keyPath string) (*AESSecurityManager, error) {
	manager := &AESSecurityManager{keyPath: keyPath}

	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create security directory: %w", err)
	}

	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		if err := manager.GenerateSecureKey(); err != nil {
			return nil, fmt.Errorf("failed to initialize encryption key: %w", err)
		}
		return manager, nil
	}

	if err := manager.loadExistingKey(); err != nil {
		return nil, fmt.Errorf("failed to initialize encryption key: %w", err)
	}
	return manager, nil
}

func getSecurityKeyPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}

	var securityDir string
	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		securityDir = filepath.Join(xdgDataHome, appDirName, "security")
	} else {
		securityDir = filepath.Join(homeDir, ".local", "share", appDirName, "security")
	}

	return filepath.Join(securityDir, "master.key"), nil
}

func (s *AESSecurityManager) loadExistingKey() error {
	keyData, err := os.ReadFile(s.keyPath)
	if err != nil {
		return fmt.Errorf("failed to read master key file: %w", err)
	}

	salt, err := hex.DecodeString(strings.TrimSpace(string(keyData)))
	if err != nil {
		return fmt.Errorf("failed to decode key material: %w", err)
	}

	s.deriveKey(salt)
	return nil
}

// machinePassphrase ties the derived key to this host and user.
func machinePassphrase() string {
	hostname, _ := os.Hostname()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	return fmt.Sprintf("%s-security-%s-%s", appDirName, hostname, username)
}

func (s *AESSecurityManager) deriveKey(salt []byte) {
	s.masterKey = pbkdf2.Key([]byte(machinePassphrase()), salt, keyDerivationRounds, 32, sha256.New)
	s.keyDerived = true
}

// GenerateSecureKey creates a new random salt, stores it and derives the key
func (s *AESSecurityManager) GenerateSecureKey() error {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate random salt: %w", err)
	}

	if err := os.WriteFile(s.keyPath, []byte(hex.EncodeToString(salt)), 0600); err != nil {
		return fmt.Errorf("failed to write key material: %w", err)
	}

	s.deriveKey(salt)
	return nil
}

// SecureKeyExists checks if encryption key material is available
func (s *AESSecurityManager) SecureKeyExists() bool {
	_, err := os.Stat(s.keyPath)
	return err == nil
}

func (s *AESSecurityManager) gcm() (cipher.AEAD, error) {
	if !s.keyDerived {
		return nil, fmt.Errorf("encryption key not available")
	}
	block, err := aes.NewCipher(s.masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// EncryptCredential encrypts a password with AES-256-GCM. The nonce is
// prepended and the whole value is base64 encoded behind encryptedPrefix.
func (s *AESSecurityManager) EncryptCredential(plaintext string) (string, error) {
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptCredential reverses EncryptCredential
func (s *AESSecurityManager) DecryptCredential(ciphertext string) (string, error) {
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, encryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether a stored password field holds ciphertext
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix)
}

// ClearSecurityData wipes the in-memory key and removes the key file
func (s *AESSecurityManager) ClearSecurityData() error {
	for i := range s.masterKey {
		s.masterKey[i] = 0
	}
	s.masterKey = nil
	s.keyDerived = false

	if err := os.Remove(s.keyPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove security key file: %w", err)
	}
	return nil
}
