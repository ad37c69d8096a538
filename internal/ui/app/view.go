package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/universal-console/dgdconsole/internal/ui/components"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	commandStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#89B4FA"))

	resultStyle = lipgloss.NewStyle().
			MarginLeft(2)

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086")).
			Italic(true)

	errorEntryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8")).
			MarginLeft(2)

	timingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086"))

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#89B4FA")).
			Padding(0, 1)

	statusLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E3A1")).
			Italic(true)
)

// View implements tea.Model
func (m *AppModel) View() string {
	sections := []string{
		m.renderHeader(),
		m.viewport.View(),
		m.renderInput(),
	}

	if m.lastError != nil {
		sections = append(sections, components.RenderErrorPane(m.lastError, m.terminalWidth))
	} else if m.statusMessage != "" {
		sections = append(sections, statusLineStyle.Render(m.statusMessage))
	}

	return strings.Join(sections, "\n")
}

func (m *AppModel) renderHeader() string {
	title := "DGD console"
	if m.profile != nil {
		title = fmt.Sprintf("%s  %s@%s", m.profile.Name, m.profile.Auth.Username, m.profile.Host)
	}

	header := headerStyle.Render(title) + "  " + components.RenderSessionState(m.session.StateName())
	if n := len(m.pending); n > 0 {
		header += fmt.Sprintf("  %s %d pending", m.spinner.View(), n)
	}
	return header
}

func (m *AppModel) renderInput() string {
	style := inputStyle
	if m.terminalWidth > 4 {
		style = style.Width(m.terminalWidth - 2)
	}
	return style.Render(m.commandInput.View())
}

// renderEntry formats one scrollback block
func (m *AppModel) renderEntry(entry HistoryEntry) string {
	switch entry.Kind {
	case EntryCommand:
		line := commandStyle.Render("> " + entry.Command)
		if entry.Pending {
			line += " " + m.spinner.View()
		} else if entry.Duration > 0 {
			line += " " + timingStyle.Render(fmt.Sprintf("[%d, %s]", entry.ID, entry.Duration.Round(time.Millisecond)))
		}
		return line

	case EntryResult:
		text := entry.Text
		if collapsible := m.renderer.Collapsible(); collapsible != nil && entry.ID >= 0 {
			text = collapsible.Apply(entry.ID, text)
		}
		return resultStyle.Render(text)

	case EntryError:
		return errorEntryStyle.Render(entry.Text)

	default:
		return messageStyle.Render(entry.Text)
	}
}

// refreshViewport re-renders the scrollback and follows the newest entry
// unless the user has scrolled up.
func (m *AppModel) refreshViewport() {
	atBottom := m.viewport.AtBottom()

	blocks := make([]string, 0, len(m.history))
	for _, entry := range m.history {
		blocks = append(blocks, m.renderEntry(entry))
	}
	m.viewport.SetContent(strings.Join(blocks, "\n"))

	if atBottom || m.viewport.YOffset == 0 {
		m.viewport.GotoBottom()
	}
}
