package menu

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/universal-console/dgdconsole/internal/interfaces"
	"github.com/universal-console/dgdconsole/internal/ui/components"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#CBA6F7")).
			Padding(1, 2)

	focusedBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("#89B4FA")).
			Padding(1, 2)

	listItemStyle    = lipgloss.NewStyle().PaddingLeft(1)
	focusedItemStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				Foreground(lipgloss.Color("#1e1e2e")).
				Background(lipgloss.Color("#FAB387"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")).Padding(1, 0)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8")).
			Bold(true)
)

// View renders the menu.
func (m *MenuModel) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Width(m.width).Render("DGD Console"))
	s.WriteString("\n\n")

	if m.isConnecting {
		s.WriteString(boxStyle.Render(components.RenderStatus("running", m.statusMessage)))
		s.WriteString("\n")
		return s.String()
	}

	s.WriteString(m.viewProfileList())
	s.WriteString("\n\n")

	s.WriteString(m.viewQuickConnect())
	s.WriteString("\n\n")

	s.WriteString(helpStyle.Render("[Enter] Connect | [1-9] Connect to profile | [Tab] Quick connect | [R]eload | [Q]uit"))

	if m.err != nil {
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	}

	return s.String()
}

// healthIndicator renders a profile's last probe result
func healthIndicator(health *interfaces.ProfileHealth) string {
	if health == nil {
		return components.RenderStatus("pending", "Checking...")
	}
	switch health.Status {
	case "ready":
		return components.RenderStatus("success", fmt.Sprintf("Ready (%dms)", health.ResponseTime.Milliseconds()))
	case "offline":
		return components.RenderStatus("error", "Offline")
	case "error":
		return components.RenderStatus("warning", "Not a console")
	default:
		return components.RenderStatus("pending", "Checking...")
	}
}

func (m *MenuModel) viewProfileList() string {
	var listItems []string

	if len(m.profiles) == 0 {
		listItems = append(listItems, helpStyle.Render("No profiles configured. Use quick connect or edit the profiles file."))
	}
	for i, profile := range m.profiles {
		itemStr := fmt.Sprintf("[%d] %s  %s@%s  %s",
			i+1, profile.Name, profile.Auth.Username, profile.Host, healthIndicator(m.profileHealth[profile.Name]))

		if m.focusState == FocusList && i == m.selectedIndex {
			listItems = append(listItems, focusedItemStyle.Render(itemStr))
		} else {
			listItems = append(listItems, listItemStyle.Render(itemStr))
		}
	}

	style := boxStyle
	if m.focusState == FocusList {
		style = focusedBoxStyle
	}

	listContent := lipgloss.JoinVertical(lipgloss.Left, listItems...)
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, lipgloss.NewStyle().Bold(true).Render("Profiles"), listContent))
}

func (m *MenuModel) viewQuickConnect() string {
	style := boxStyle
	if m.focusState == FocusInput {
		style = focusedBoxStyle
	}

	return style.Render(lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Render("Quick Connect"),
		"Address: "+m.quickConnectInput.View()))
}
