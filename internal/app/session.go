package app

import (
	"context"
	"fmt"

	"github.com/universal-console/dgdconsole/internal/content"
	"github.com/universal-console/dgdconsole/internal/errors"
	"github.com/universal-console/dgdconsole/internal/interfaces"
	"github.com/universal-console/dgdconsole/internal/library"
	"github.com/universal-console/dgdconsole/internal/logging"
	"github.com/universal-console/dgdconsole/internal/protocol"
	uiapp "github.com/universal-console/dgdconsole/internal/ui/app"
)

// bridgeBuffer bounds the events queued between the connection and the UI
const bridgeBuffer = 256

// SessionFactory opens console sessions for profiles
type SessionFactory struct {
	Config      interfaces.ConfigManager
	Auth        interfaces.AuthManager
	Preferences content.RenderingPreferences

	// Dial overrides the transport; protocol.DialTCP when nil.
	Dial protocol.DialFunc
}

// ConnectionOptions resolves everything a connection to profile needs
// except the callbacks.
func (f *SessionFactory) ConnectionOptions(profile *interfaces.Profile) (protocol.Options, error) {
	if err := f.Config.ValidateProfile(profile); err != nil {
		return protocol.Options{}, errors.NewConfigurationError("session").
			WithMessagef("profile '%s': %v", profile.Name, err).
			WithCause(err).
			Build()
	}

	password, err := f.Auth.ResolvePassword(profile)
	if err != nil {
		return protocol.Options{}, errors.NewAuthenticationError("session").
			WithMessage(err.Error()).
			WithUserMessage(fmt.Sprintf("No usable password for profile '%s': %v", profile.Name, err)).
			WithCause(err).
			Build()
	}

	opts := protocol.Options{
		Address:  profile.Host,
		Username: profile.Auth.Username,
		Password: password,
		Helper:   profile.Helper,
		Dial:     f.Dial,
	}
	// A nil *Installer must not become a non-nil interface.
	if profile.LibraryPath != "" {
		opts.HelperSource = library.NewInstaller(profile.LibraryPath, profile.Helper.SourceFile)
	}
	return opts, nil
}

// Theme loads the profile's theme, falling back to the built-in styles
func (f *SessionFactory) Theme(profile *interfaces.Profile) *interfaces.Theme {
	theme, err := f.Config.LoadTheme(profile.Theme)
	if err != nil {
		logging.GetUILogger().Warn("Theme not found, using defaults", "theme", profile.Theme, "error", err)
		return &interfaces.Theme{Name: "default"}
	}
	return theme
}

// Open connects to profile's console and returns the interactive model
// driving the session. The handshake continues in the background.
func (f *SessionFactory) Open(ctx context.Context, profile *interfaces.Profile) (*uiapp.AppModel, error) {
	opts, err := f.ConnectionOptions(profile)
	if err != nil {
		return nil, err
	}

	renderer, err := content.NewRenderer(f.Preferences)
	if err != nil {
		return nil, err
	}

	bridge := uiapp.NewEventBridge(bridgeBuffer)
	opts.Output = bridge.Output
	opts.OnReady = bridge.Ready
	opts.OnError = bridge.Error

	conn, err := protocol.NewConnection(opts)
	if err != nil {
		return nil, errors.NewConfigurationError("session").WithMessage(err.Error()).WithCause(err).Build()
	}
	if err := conn.Connect(ctx); err != nil {
		bridge.Stop()
		return nil, err
	}

	return uiapp.NewAppModel(profile, conn, renderer, f.Theme(profile), bridge), nil
}
