package menu

import (
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/universal-console/dgdconsole/internal/interfaces"
)

// Update handles messages and updates the model state.
func (m *MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	// While connecting only the result matters.
	if m.isConnecting {
		if msg, ok := msg.(ConnectionResultMsg); ok {
			return m.connectionResult(msg)
		}
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.err = nil

		switch m.focusState {
		case FocusList:
			cmd = m.handleListKeys(msg)
		case FocusInput:
			cmd = m.handleInputKeys(msg)
		}
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case profilesReloadedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.profiles = msg.profiles
			if m.selectedIndex >= len(m.profiles) {
				m.selectedIndex = 0
			}
		}
		cmds = append(cmds, m.updateHealth())

	case healthStatusUpdatedMsg:
		for name, health := range msg.health {
			m.profileHealth[name] = health
		}

	case tickMsg:
		cmds = append(cmds, m.updateHealth(), tick())

	case ConnectionResultMsg:
		return m.connectionResult(msg)
	}

	if m.focusState == FocusInput {
		m.quickConnectInput, cmd = m.quickConnectInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// connectionResult shows a failure. Run standalone, the menu hands over to
// the new model itself; under a controller the controller intercepts this.
func (m *MenuModel) connectionResult(msg ConnectionResultMsg) (tea.Model, tea.Cmd) {
	m.isConnecting = false
	m.statusMessage = ""
	if msg.Err != nil {
		m.err = msg.Err
		return m, nil
	}
	return msg.Model, msg.Model.Init()
}

func (m *MenuModel) connectTo(profile *interfaces.Profile) tea.Cmd {
	m.isConnecting = true
	m.statusMessage = "Connecting to " + profile.Name + " (" + profile.Host + ")..."
	m.err = nil
	return m.attemptConnection(profile)
}

// handleListKeys processes key presses when the profile list is focused.
func (m *MenuModel) handleListKeys(msg tea.KeyMsg) tea.Cmd {
	switch key := msg.String(); key {
	case "ctrl+c", "q":
		return tea.Quit

	case "up", "k":
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}

	case "down", "j":
		if m.selectedIndex < len(m.profiles)-1 {
			m.selectedIndex++
		}

	case "enter":
		if m.selectedIndex < len(m.profiles) {
			return m.connectTo(m.profiles[m.selectedIndex])
		}

	case "r":
		return m.reloadProfiles()

	case "tab":
		m.focusState = FocusInput
		return m.quickConnectInput.Focus()

	default:
		if i, err := strconv.Atoi(key); err == nil && i >= 1 && i <= len(m.profiles) {
			m.selectedIndex = i - 1
			return m.connectTo(m.profiles[m.selectedIndex])
		}
	}
	return nil
}

// handleInputKeys processes key presses when the quick connect input is focused.
func (m *MenuModel) handleInputKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit

	case "enter":
		profile, err := QuickConnectProfile(m.quickConnectInput.Value())
		if err != nil {
			m.err = err
			return nil
		}
		return m.connectTo(profile)

	case "tab", "shift+tab", "esc":
		m.focusState = FocusList
		m.quickConnectInput.Blur()
		return nil
	}

	var cmd tea.Cmd
	m.quickConnectInput, cmd = m.quickConnectInput.Update(msg)
	return cmd
}
