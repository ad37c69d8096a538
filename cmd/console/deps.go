package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/universal-console/dgdconsole/internal/app"
	"github.com/universal-console/dgdconsole/internal/auth"
	"github.com/universal-console/dgdconsole/internal/config"
	"github.com/universal-console/dgdconsole/internal/content"
	"github.com/universal-console/dgdconsole/internal/interfaces"
	"github.com/universal-console/dgdconsole/internal/logging"
	"github.com/universal-console/dgdconsole/internal/registry"
	"github.com/universal-console/dgdconsole/internal/ui/menu"
)

// globalOptions are the flags shared by every command
type globalOptions struct {
	profile string
	host    string
	theme   string
	noColor bool
}

// dependencies holds the collaborators every command is built from
type dependencies struct {
	config   *config.Manager
	auth     *auth.Manager
	registry *registry.Manager
	factory  *app.SessionFactory
	logger   *logging.Logger
}

// initializeLogging sets up the global logger. The interactive console
// must not write logs to the terminal it draws on, so it logs to the
// CONSOLE_LOG file or nowhere.
func initializeLogging(interactive bool) error {
	logConfig := logging.DefaultConfig()
	logConfig.Output = "stderr"
	if interactive {
		logConfig.Output = "discard"
	}
	if path := os.Getenv("CONSOLE_LOG"); path != "" {
		logConfig.Output = path
	}
	if level := os.Getenv("CONSOLE_LOG_LEVEL"); level != "" {
		logConfig.Level = logging.ParseLevel(level)
	} else if !interactive {
		logConfig.Level = logging.WarnLevel
	}
	if os.Getenv("CONSOLE_DEBUG") == "true" {
		logConfig.Level = logging.DebugLevel
		logConfig.Format = "json"
	}

	return logging.InitGlobalLogger(logConfig)
}

func loadDependencies(opts *globalOptions) (*dependencies, error) {
	configManager, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}

	storage, err := auth.OpenKeyringStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to open the keyring: %w", err)
	}
	authManager, err := auth.NewManager(storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth manager: %w", err)
	}

	registryManager, err := registry.NewManager(configManager, registry.DefaultPreferences())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry manager: %w", err)
	}

	prefs := content.DefaultPreferences()
	if opts.noColor {
		prefs.Highlight = false
	}

	return &dependencies{
		config:   configManager,
		auth:     authManager,
		registry: registryManager,
		factory: &app.SessionFactory{
			Config:      configManager,
			Auth:        authManager,
			Preferences: prefs,
		},
		logger: logging.GetGlobalLogger(),
	}, nil
}

// resolveProfile picks the profile named on the command line, a quick
// connect profile for --host, or the default profile.
func (d *dependencies) resolveProfile(opts *globalOptions) (*interfaces.Profile, error) {
	if opts.host != "" && opts.profile != "" {
		return nil, fmt.Errorf("cannot specify both --host and --profile")
	}

	var profile *interfaces.Profile
	if opts.host != "" {
		p, err := menu.QuickConnectProfile(opts.host)
		if err != nil {
			return nil, err
		}
		profile = p
	} else {
		name := opts.profile
		if name == "" {
			name = config.DefaultProfileName
		}
		p, err := d.config.LoadProfile(name)
		if err != nil {
			return nil, err
		}
		profile = p
	}

	if opts.theme != "" {
		profile.Theme = opts.theme
	}
	return profile, nil
}

// directConnection reports whether the user named a server to connect to
func (opts *globalOptions) directConnection() bool {
	return strings.TrimSpace(opts.host) != "" || strings.TrimSpace(opts.profile) != ""
}
