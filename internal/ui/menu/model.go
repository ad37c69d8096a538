// Package menu implements the profile picker shown before a session is open:
// the configured profiles with the reachability of their consoles, and a
// quick connect field for an ad hoc address.
package menu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/universal-console/dgdconsole/internal/config"
	"github.com/universal-console/dgdconsole/internal/interfaces"
)

// FocusState represents which part of the menu is currently focused.
type FocusState int

const (
	FocusList FocusState = iota
	FocusInput
)

// Connector opens a session for profile and returns the model that drives it
type Connector func(ctx context.Context, profile *interfaces.Profile) (tea.Model, error)

// MenuModel represents the state of the profile menu.
type MenuModel struct {
	registryManager interfaces.RegistryManager
	connect         Connector
	monitorInterval time.Duration

	profiles          []*interfaces.Profile
	profileHealth     map[string]*interfaces.ProfileHealth
	selectedIndex     int
	quickConnectInput textinput.Model
	focusState        FocusState
	isConnecting      bool
	statusMessage     string
	err               error

	width  int
	height int
}

// NewMenuModel creates the menu. Health is polled every monitorInterval.
func NewMenuModel(registry interfaces.RegistryManager, connect Connector, monitorInterval time.Duration) *MenuModel {
	ti := textinput.New()
	ti.Placeholder = "admin@localhost:8023"
	ti.CharLimit = 150
	ti.Width = 50

	if monitorInterval <= 0 {
		monitorInterval = 30 * time.Second
	}

	return &MenuModel{
		registryManager:   registry,
		connect:           connect,
		monitorInterval:   monitorInterval,
		quickConnectInput: ti,
		focusState:        FocusList,
		profileHealth:     make(map[string]*interfaces.ProfileHealth),
	}
}

// Init loads the profiles and starts health monitoring. It is run again
// each time the menu is shown.
func (m *MenuModel) Init() tea.Cmd {
	// Already running when the menu is shown a second time.
	_ = m.registryManager.StartHealthMonitoring(context.Background(), m.monitorInterval)
	m.isConnecting = false
	m.statusMessage = ""
	return tea.Batch(
		m.reloadProfiles(),
		tick(),
	)
}

// Profiles returns the listed profiles
func (m *MenuModel) Profiles() []*interfaces.Profile {
	return m.profiles
}

// Err returns the last connection or load error
func (m *MenuModel) Err() error {
	return m.err
}

// ConnectionResultMsg is sent after a connection attempt. The parent
// controller switches to Model on success.
type ConnectionResultMsg struct {
	Model tea.Model
	Err   error
}

type (
	profilesReloadedMsg struct {
		profiles []*interfaces.Profile
		err      error
	}

	healthStatusUpdatedMsg struct {
		health map[string]*interfaces.ProfileHealth
	}

	tickMsg struct{}
)

// tick refreshes the health indicators every second.
func tick() tea.Cmd {
	return tea.Every(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *MenuModel) reloadProfiles() tea.Cmd {
	return func() tea.Msg {
		profiles, err := m.registryManager.ListProfiles()
		return profilesReloadedMsg{profiles: profiles, err: err}
	}
}

func (m *MenuModel) updateHealth() tea.Cmd {
	profiles := m.profiles
	return func() tea.Msg {
		healthMap := make(map[string]*interfaces.ProfileHealth)
		for _, p := range profiles {
			if health, ok := m.registryManager.GetHealth(p.Name); ok {
				healthMap[p.Name] = health
			}
		}
		return healthStatusUpdatedMsg{health: healthMap}
	}
}

func (m *MenuModel) attemptConnection(profile *interfaces.Profile) tea.Cmd {
	connect := m.connect
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		model, err := connect(ctx, profile)
		if err != nil {
			return ConnectionResultMsg{Err: fmt.Errorf("connection to %s failed: %w", profile.Host, err)}
		}
		return ConnectionResultMsg{Model: model}
	}
}

// QuickConnectProfile builds a temporary profile from "[user@]host:port".
// Everything else takes the defaults; the password is read from DGD_PASSWORD.
func QuickConnectProfile(address string) (*interfaces.Profile, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}

	profile := config.DefaultProfile("quick")
	profile.Auth.PasswordSource = config.PasswordSourceEnv
	if user, host, ok := strings.Cut(address, "@"); ok {
		if user == "" {
			return nil, fmt.Errorf("username before '@' cannot be empty")
		}
		profile.Auth.Username = user
		address = host
	}
	if !strings.Contains(address, ":") {
		return nil, fmt.Errorf("invalid address %q: port required", address)
	}
	profile.Host = address
	return &profile, nil
}
