// Package interfaces defines the shared types and collaborator interfaces used
// for dependency injection and testability throughout the DGD console.
package interfaces

import (
	"context"
	"time"
)

// Profile represents a complete configuration profile for connecting to a DGD server
type Profile struct {
	Name        string            `yaml:"name"`
	Host        string            `yaml:"host"`
	Theme       string            `yaml:"theme"`
	Auth        AuthConfig        `yaml:"auth"`
	Helper      HelperConfig      `yaml:"helper"`
	LibraryPath string            `yaml:"libraryPath,omitempty"`
	ShowStatus  bool              `yaml:"showStatus"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`
}

// AuthConfig holds the login credentials for the administrative console
type AuthConfig struct {
	Username       string `yaml:"username"`
	Password       string `yaml:"password,omitempty"`
	PasswordSource string `yaml:"passwordSource,omitempty"` // "config", "env", "keyring"
}

// HelperConfig describes the privileged server-side helper object
type HelperConfig struct {
	Path       string `yaml:"path"`
	Version    int    `yaml:"version"`
	Install    bool   `yaml:"install"`
	SourceFile string `yaml:"sourceFile,omitempty"`
}

// Theme represents visual styling configuration
type Theme struct {
	Name    string `yaml:"name"`
	Success string `yaml:"success"`
	Error   string `yaml:"error"`
	Warning string `yaml:"warning"`
	Info    string `yaml:"info"`
	Code    string `yaml:"code"` // chroma style name
}

// CompileError is one "<path>, <line>: <message>" diagnostic emitted by the
// server while compiling an evaluated expression or object.
type CompileError struct {
	File    string
	Line    int
	Message string
	Raw     string
}

// CodeResult is the parsed reply to one command.
//
// Success implies Error is empty. Result may be nil on success, which means the
// evaluation found nothing; it is never "missing".
type CodeResult struct {
	ID            int
	Success       bool
	Result        any
	Error         string
	CompileErrors []CompileError
	Raw           string
}

// ResultCallback receives the parsed reply of a submitted command
type ResultCallback func(CodeResult)

// Session is the collaborator-facing surface of a console connection
type Session interface {
	// SubmitEvaluate routes an expression through the helper and registers onComplete for its reply
	SubmitEvaluate(expression string, onComplete ResultCallback) (int, error)

	// Reconnect starts a new connection if the previous one is gone
	Reconnect() bool

	// Restart abandons a handshake stuck before Ready and connects again;
	// otherwise it behaves like Reconnect
	Restart() bool

	// Close tears down the connection, abandoning all in-flight commands
	Close() error

	// IsReady reports whether login, provisioning and the canary check have completed
	IsReady() bool

	// StateName returns the name of the current lifecycle state
	StateName() string
}

// ConfigManager handles profile and theme management
type ConfigManager interface {
	// LoadProfile retrieves a profile by name from the configuration file
	LoadProfile(name string) (*Profile, error)

	// SaveProfile persists a profile to the configuration file
	SaveProfile(profile *Profile) error

	// ListProfiles returns all available profile names
	ListProfiles() ([]string, error)

	// DeleteProfile removes a profile from the configuration file
	DeleteProfile(name string) error

	// LoadTheme retrieves theme configuration by name
	LoadTheme(name string) (*Theme, error)

	// ValidateProfile ensures profile has all required fields
	ValidateProfile(profile *Profile) error

	// GetConfigPath returns the path to the configuration file
	GetConfigPath() string
}

// AuthManager resolves and stores console credentials
type AuthManager interface {
	// ResolvePassword returns the password for a profile according to its password source
	ResolvePassword(profile *Profile) (string, error)

	// StorePassword saves a password in secure storage for a profile
	StorePassword(profileName string, password string) error

	// ValidateCredentials checks that a username/password pair can be sent as console lines
	ValidateCredentials(username, password string) error
}

// ContentRenderer formats command results for display
type ContentRenderer interface {
	// RenderResult formats a complete command result including errors
	RenderResult(result CodeResult, theme *Theme) (string, error)

	// RenderValue formats a bare result value
	RenderValue(value any, theme *Theme) (string, error)
}

// ProfileHealth is the last known reachability of a profile's console
type ProfileHealth struct {
	Profile      string
	Host         string
	Status       string // "ready", "offline", "error", "unknown"
	Banner       string
	ResponseTime time.Duration
	LastCheck    time.Time
	Error        string
}

// RegistryManager lists connectable profiles and monitors whether their consoles answer
type RegistryManager interface {
	// ListProfiles returns all configured profiles sorted by name
	ListProfiles() ([]*Profile, error)

	// GetHealth returns the last health result of a profile, if any
	GetHealth(name string) (*ProfileHealth, bool)

	// CheckHealth probes a profile's console immediately
	CheckHealth(ctx context.Context, name string) (*ProfileHealth, error)

	// StartHealthMonitoring probes all profiles every interval until stopped
	StartHealthMonitoring(ctx context.Context, interval time.Duration) error

	// StopHealthMonitoring stops background probing
	StopHealthMonitoring() error
}
