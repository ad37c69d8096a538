// Package config manages connection profiles and display themes stored in a
// YAML file, with console passwords encrypted at rest.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/universal-console/dgdconsole/internal/interfaces"
	"github.com/universal-console/dgdconsole/internal/logging"
)

// appDirName names the configuration and data directories
const appDirName = "dgdconsole"

// Profile defaults
const (
	DefaultProfileName   = "default"
	DefaultHost          = "localhost:8023"
	DefaultUsername      = "admin"
	DefaultHelperPath    = "/usr/System/sys/code_assist.c"
	DefaultHelperVersion = 11
	DefaultThemeName     = "dark"
)

// Password sources
const (
	PasswordSourceConfig  = "config"
	PasswordSourceEnv     = "env"
	PasswordSourceKeyring = "keyring"
)

// Config represents the complete configuration file structure
type Config struct {
	Profiles map[string]interfaces.Profile `yaml:"profiles"`
	Themes   map[string]interfaces.Theme   `yaml:"themes"`
}

// Manager implements interfaces.ConfigManager on top of a YAML file
type Manager struct {
	configPath   string
	securityMgr  SecurityManager
	cachedConfig *Config
	logger       *logging.Logger
}

// NewManager creates a configuration manager using OS-appropriate paths
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to determine configuration path: %w", err)
	}

	securityMgr, err := NewSecurityManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize security manager: %w", err)
	}

	return NewManagerWithPaths(configPath, securityMgr)
}

// NewManagerWithPaths creates a configuration manager for an explicit file
func NewManagerWithPaths(configPath string, securityMgr SecurityManager) (*Manager, error) {
	if securityMgr == nil {
		return nil, fmt.Errorf("security manager cannot be nil")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory %s: %w", filepath.Dir(configPath), err)
	}

	return &Manager{
		configPath:  configPath,
		securityMgr: securityMgr,
		logger:      logging.GetConfigLogger(),
	}, nil
}

func getConfigPath() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, appDirName, "profiles.yaml"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", appDirName, "profiles.yaml"), nil
}

// DefaultProfile returns a profile populated with the standard defaults
func DefaultProfile(name string) interfaces.Profile {
	return interfaces.Profile{
		Name:  name,
		Host:  DefaultHost,
		Theme: DefaultThemeName,
		Auth: interfaces.AuthConfig{
			Username:       DefaultUsername,
			PasswordSource: PasswordSourceKeyring,
		},
		Helper: interfaces.HelperConfig{
			Path:    DefaultHelperPath,
			Version: DefaultHelperVersion,
			Install: true,
		},
		ShowStatus: true,
	}
}

func (m *Manager) createDefaultConfig() *Config {
	return &Config{
		Profiles: map[string]interfaces.Profile{
			DefaultProfileName: DefaultProfile(DefaultProfileName),
		},
		Themes: map[string]interfaces.Theme{
			"dark": {
				Name:    "dark",
				Success: "#a6e22e",
				Error:   "#f92672",
				Warning: "#fd971f",
				Info:    "#66d9ef",
				Code:    "monokai",
			},
			"light": {
				Name:    "light",
				Success: "#28a745",
				Error:   "#dc3545",
				Warning: "#ffc107",
				Info:    "#17a2b8",
				Code:    "github",
			},
		},
	}
}

// loadConfig reads the file, creating it with defaults if missing
func (m *Manager) loadConfig() (*Config, error) {
	if m.cachedConfig != nil {
		return m.cachedConfig, nil
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		config := m.createDefaultConfig()
		if err := m.saveConfig(config); err != nil {
			return nil, fmt.Errorf("failed to create default configuration: %w", err)
		}
		m.cachedConfig = config
		return config, nil
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}
	if config.Profiles == nil {
		config.Profiles = make(map[string]interfaces.Profile)
	}

	for name, profile := range config.Profiles {
		if IsEncrypted(profile.Auth.Password) {
			plain, err := m.securityMgr.DecryptCredential(profile.Auth.Password)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt password for profile %s: %w", name, err)
			}
			profile.Auth.Password = plain
			config.Profiles[name] = profile
		}
	}

	m.cachedConfig = &config
	return &config, nil
}

// saveConfig writes the configuration with passwords encrypted
func (m *Manager) saveConfig(config *Config) error {
	configCopy := *config
	configCopy.Profiles = make(map[string]interfaces.Profile, len(config.Profiles))

	for name, profile := range config.Profiles {
		if profile.Auth.Password != "" && !IsEncrypted(profile.Auth.Password) {
			encrypted, err := m.securityMgr.EncryptCredential(profile.Auth.Password)
			if err != nil {
				return fmt.Errorf("failed to encrypt password for profile %s: %w", name, err)
			}
			profile.Auth.Password = encrypted
		}
		configCopy.Profiles[name] = profile
	}

	data, err := yaml.Marshal(&configCopy)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

// LoadProfile retrieves a validated profile by name
func (m *Manager) LoadProfile(name string) (*interfaces.Profile, error) {
	m.logger.LogConfigLoad(m.configPath, name)

	config, err := m.loadConfig()
	if err != nil {
		m.logger.LogConfigError("load", err)
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	profile, exists := config.Profiles[name]
	if !exists {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}
	profile.Name = name

	if err := m.ValidateProfile(&profile); err != nil {
		return nil, fmt.Errorf("profile '%s' is invalid: %w", name, err)
	}

	return &profile, nil
}

// SaveProfile adds or replaces a profile
func (m *Manager) SaveProfile(profile *interfaces.Profile) error {
	if err := m.ValidateProfile(profile); err != nil {
		return fmt.Errorf("cannot save invalid profile: %w", err)
	}

	config, err := m.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	config.Profiles[profile.Name] = *profile

	if err := m.saveConfig(config); err != nil {
		m.logger.LogConfigError("save", err)
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	m.cachedConfig = config
	return nil
}

// ListProfiles returns all profile names in sorted order
func (m *Manager) ListProfiles() ([]string, error) {
	config, err := m.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	names := make([]string, 0, len(config.Profiles))
	for name := range config.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteProfile removes a profile; the default profile cannot be deleted
func (m *Manager) DeleteProfile(name string) error {
	config, err := m.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if _, exists := config.Profiles[name]; !exists {
		return fmt.Errorf("profile '%s' does not exist", name)
	}
	if name == DefaultProfileName {
		return fmt.Errorf("cannot delete the default profile")
	}

	delete(config.Profiles, name)

	if err := m.saveConfig(config); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	m.cachedConfig = config
	return nil
}

// LoadTheme retrieves theme configuration by name
func (m *Manager) LoadTheme(name string) (*interfaces.Theme, error) {
	config, err := m.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	theme, exists := config.Themes[name]
	if !exists {
		return nil, fmt.Errorf("theme '%s' not found", name)
	}
	theme.Name = name
	return &theme, nil
}

// ValidateProfile ensures a profile can be used to connect
func (m *Manager) ValidateProfile(profile *interfaces.Profile) error {
	if profile == nil {
		return fmt.Errorf("profile cannot be nil")
	}

	if strings.TrimSpace(profile.Name) == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	if _, port, err := net.SplitHostPort(profile.Host); err != nil || port == "" {
		return fmt.Errorf("host must include port (e.g., %s)", DefaultHost)
	}

	if strings.TrimSpace(profile.Auth.Username) == "" {
		return fmt.Errorf("username cannot be empty")
	}

	switch profile.Auth.PasswordSource {
	case "", PasswordSourceConfig, PasswordSourceEnv, PasswordSourceKeyring:
	default:
		return fmt.Errorf("unsupported password source: %s", profile.Auth.PasswordSource)
	}

	if profile.Helper.Install {
		if !strings.HasSuffix(profile.Helper.Path, ".c") {
			return fmt.Errorf("helper path must be a filename ending with .c")
		}
		if profile.Helper.Version <= 0 {
			return fmt.Errorf("helper version must be positive")
		}
	}

	return nil
}

// GetConfigPath returns the path to the configuration file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// InvalidateCache forces a reload on next access
func (m *Manager) InvalidateCache() {
	m.cachedConfig = nil
}
