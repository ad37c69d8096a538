package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/universal-console/dgdconsole/internal/errors"
)

// Styling for error components.
var (
	errorPaneStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder(), false, true, true, true).
			BorderForeground(lipgloss.Color("#F38BA8")).
			MarginTop(1).
			Padding(0, 1)

	errorHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#F38BA8"))

	errorCodeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAB387")).
			Italic(true)

	recoveryTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#A6E3A1")).
				MarginTop(1)
)

// recoveryHints tells the user what to do next for each kind of failure
var recoveryHints = map[errors.ErrorType]string{
	errors.ErrorTypeTransport:      "Type /reconnect to connect again.",
	errors.ErrorTypeAuthentication: "Check the username and password of the profile, then /reconnect.",
	errors.ErrorTypeProvisioning:   "Check the helper path and version in the profile; the session stays connected but cannot evaluate.",
}

// RenderErrorPane renders a processed error with its code and a recovery hint.
func RenderErrorPane(currentError *errors.ProcessedError, width int) string {
	if currentError == nil {
		return ""
	}

	var builder strings.Builder

	builder.WriteString(errorHeaderStyle.Render(fmt.Sprintf("❌ Error: %s", currentError.Message)))
	builder.WriteRune('\n')

	if currentError.Code != 0 {
		builder.WriteString(errorCodeStyle.Render(fmt.Sprintf("   Code: %d", currentError.Code)))
		builder.WriteRune('\n')
	}

	if hint, ok := recoveryHints[currentError.Kind]; ok {
		builder.WriteString(recoveryTitleStyle.Render(hint))
	}

	if width > 4 {
		return errorPaneStyle.Width(width - 4).Render(builder.String())
	}
	return errorPaneStyle.Render(builder.String())
}
