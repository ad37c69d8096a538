// Package components provides small rendering helpers shared by the console
// views: status indicators and the error pane.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// statusStyles maps status strings to their corresponding visual style.
var statusStyles = map[string]lipgloss.Style{
	"pending":  lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
	"success":  lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
	"error":    lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
	"warning":  lipgloss.NewStyle().Foreground(lipgloss.Color("#FAB387")),
	"info":     lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA")),
	"running":  lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
	"complete": lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
}

// statusIcons maps status strings to their corresponding icon.
var statusIcons = map[string]string{
	"pending":  "⏳",
	"success":  "✅",
	"error":    "❌",
	"warning":  "⚠️",
	"info":     "ℹ️",
	"running":  "🏃",
	"complete": "🏁",
}

// sessionStatus maps connection state names onto status kinds
var sessionStatus = map[string]string{
	"Disconnected":       "error",
	"Connecting":         "pending",
	"AwaitingUsername":   "pending",
	"AwaitingPassword":   "pending",
	"ProvisioningHelper": "running",
	"Ready":              "success",
	"Closed":             "error",
}

// RenderStatus formats a status message with an appropriate icon and color.
func RenderStatus(status, message string) string {
	style, exists := statusStyles[status]
	if !exists {
		style = lipgloss.NewStyle()
	}

	icon, exists := statusIcons[status]
	if !exists {
		icon = "🔹"
	}

	return style.Render(fmt.Sprintf("%s %s", icon, message))
}

// SessionStatus returns the status kind for a connection state name
func SessionStatus(state string) string {
	if status, ok := sessionStatus[state]; ok {
		return status
	}
	return "info"
}

// RenderSessionState renders the connection state as a status indicator
func RenderSessionState(state string) string {
	return RenderStatus(SessionStatus(state), state)
}
