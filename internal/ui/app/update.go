package app

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/universal-console/dgdconsole/internal/content"
	"github.com/universal-console/dgdconsole/internal/interfaces"
	"github.com/universal-console/dgdconsole/internal/protocol"
)

const helpText = `Type an expression to evaluate it on the server through the helper object.

Commands:
  /status      show the server status report
  /reconnect   connect again after the connection was lost
  /fold [id]   fold or unfold a long result (default: the last one)
  /clear       clear the scrollback
  /menu        close the session and return to the profile menu
  /quit        exit

Keys: up/down input history, pgup/pgdown scroll, ctrl+o toggle last fold, ctrl+l clear`

// Update implements tea.Model
func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var commands []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd := m.handleKeyInput(msg); cmd != nil {
			commands = append(commands, cmd)
		}

	case tea.WindowSizeMsg:
		m.SetTerminalSize(msg.Width, msg.Height)

	case OutputMsg:
		m.addMessage(msg.Text)
		commands = append(commands, m.bridge.Listen())

	case ReadyMsg:
		m.lastError = nil
		m.statusMessage = ""
		if m.showStatus && !m.statusShown {
			m.statusShown = true
			m.requestStatus()
		}
		commands = append(commands, m.bridge.Listen())

	case SessionErrorMsg:
		m.handleSessionError(msg.Err)
		commands = append(commands, m.bridge.Listen())

	case ResultMsg:
		m.handleResult(msg)
		commands = append(commands, m.bridge.Listen())

	case StatusMsg:
		m.handleStatus(msg.Result)
		commands = append(commands, m.bridge.Listen())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		commands = append(commands, cmd)

	default:
		var cmd tea.Cmd
		m.commandInput, cmd = m.commandInput.Update(msg)
		if cmd != nil {
			commands = append(commands, cmd)
		}
	}

	if len(commands) > 0 {
		return m, tea.Batch(commands...)
	}
	return m, nil
}

// handleKeyInput processes keyboard input
func (m *AppModel) handleKeyInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		return m.quit()

	case "enter":
		command := strings.TrimSpace(m.commandInput.Value())
		m.commandInput.SetValue("")
		return m.ExecuteCommand(command)

	case "esc":
		m.commandInput.SetValue("")
		m.statusMessage = ""
		return nil

	case "up":
		m.navigateInputHistory(-1)
		return nil

	case "down":
		m.navigateInputHistory(1)
		return nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd

	case "ctrl+o":
		m.toggleFold(m.lastResultID)
		return nil

	case "ctrl+l":
		m.clearHistory()
		return nil
	}

	var cmd tea.Cmd
	m.commandInput, cmd = m.commandInput.Update(msg)
	return cmd
}

// ExecuteCommand runs a meta command or evaluates an expression
func (m *AppModel) ExecuteCommand(command string) tea.Cmd {
	if command == "" {
		return nil
	}
	m.addToInputHistory(command)

	if strings.HasPrefix(command, "/") {
		return m.handleMetaCommand(command)
	}

	entry := m.addToHistory(HistoryEntry{Kind: EntryCommand, Command: command, Pending: true})

	start := time.Now()
	bridge := m.bridge
	id, err := m.session.SubmitEvaluate(command, func(r interfaces.CodeResult) {
		bridge.Send(ResultMsg{ID: r.ID, Result: r, Duration: time.Since(start)})
	})
	if err != nil {
		m.history[entry].Pending = false
		m.submitFailed(err)
		return nil
	}

	m.history[entry].ID = id
	m.pending[id] = entry
	m.submitted[id] = start
	m.logger.Debug("Expression submitted", "id", id)
	return nil
}

func (m *AppModel) submitFailed(err error) {
	switch {
	case stderrors.Is(err, protocol.ErrNotConnected):
		m.addToHistory(HistoryEntry{Kind: EntryError, Text: "Not connected; reconnecting. Resubmit the expression once connected."})
	case stderrors.Is(err, protocol.ErrNotReady):
		m.addToHistory(HistoryEntry{Kind: EntryError, Text: "The session is not ready yet."})
	default:
		m.addToHistory(HistoryEntry{Kind: EntryError, Text: m.handler.StatusLine(err)})
	}
}

func (m *AppModel) handleMetaCommand(command string) tea.Cmd {
	fields := strings.Fields(command)

	switch fields[0] {
	case "/help":
		m.addMessage(helpText)

	case "/status":
		m.requestStatus()

	case "/reconnect":
		if !m.session.Restart() {
			m.addMessage("Already connected or connecting.")
		}

	case "/fold":
		id := m.lastResultID
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				m.addToHistory(HistoryEntry{Kind: EntryError, Text: "usage: /fold [id]"})
				return nil
			}
			id = n
		}
		m.toggleFold(id)

	case "/clear":
		m.clearHistory()

	case "/menu":
		return func() tea.Msg { return MenuRequestedMsg{} }

	case "/quit", "/exit":
		return m.quit()

	default:
		m.addToHistory(HistoryEntry{Kind: EntryError, Text: fmt.Sprintf("Unknown command %s; try /help", fields[0])})
	}
	return nil
}

func (m *AppModel) requestStatus() {
	bridge := m.bridge
	_, err := m.session.SubmitEvaluate(protocol.StatusExpression, func(r interfaces.CodeResult) {
		bridge.Send(StatusMsg{Result: r})
	})
	if err != nil {
		m.submitFailed(err)
	}
}

func (m *AppModel) handleResult(msg ResultMsg) {
	text, err := m.renderer.RenderResult(msg.Result, m.theme)
	if err != nil {
		m.logger.Warn("Failed to render result", "id", msg.ID, "error", err)
	}

	if idx, ok := m.pending[msg.ID]; ok {
		m.history[idx].Pending = false
		m.history[idx].Duration = msg.Duration
		delete(m.pending, msg.ID)
	}
	delete(m.submitted, msg.ID)

	kind := EntryResult
	if !msg.Result.Success {
		kind = EntryError
	}
	m.lastResultID = msg.ID
	m.addToHistory(HistoryEntry{Kind: kind, ID: msg.ID, Text: text, Duration: msg.Duration})
}

func (m *AppModel) handleStatus(r interfaces.CodeResult) {
	if !r.Success {
		m.addToHistory(HistoryEntry{Kind: EntryError, Text: "status() failed: " + r.Error})
		return
	}

	status, err := protocol.DecodeServerStatus(r.Result)
	if err != nil {
		m.addToHistory(HistoryEntry{Kind: EntryError, Text: "Unexpected status report: " + err.Error()})
		return
	}

	fields := status.Fields()
	pairs := make([][2]string, 0, len(fields))
	for _, f := range fields {
		pairs = append(pairs, [2]string{f.Label, f.Value})
	}
	table := content.NewStatusTable("Server status", pairs)
	m.addToHistory(HistoryEntry{Kind: EntryResult, ID: r.ID, Text: m.renderer.RenderTable(table, m.theme)})
}

func (m *AppModel) handleSessionError(err error) {
	processed, perr := m.handler.Process(err)
	if perr != nil {
		return
	}
	m.lastError = processed

	// Commands in flight on a closed connection never get a reply.
	if processed.Fatal {
		for id, idx := range m.pending {
			m.history[idx].Pending = false
			delete(m.pending, id)
			delete(m.submitted, id)
		}
	}
	m.refreshViewport()
}

func (m *AppModel) toggleFold(id int) {
	if id < 0 {
		return
	}
	collapsible := m.renderer.Collapsible()
	if collapsible == nil {
		return
	}
	collapsible.Toggle(id)
	m.refreshViewport()
}

func (m *AppModel) navigateInputHistory(direction int) {
	if len(m.inputHistory) == 0 {
		return
	}

	switch {
	case m.inputHistoryIndex == -1 && direction < 0:
		m.inputHistoryIndex = len(m.inputHistory) - 1
	case m.inputHistoryIndex == -1:
		return
	default:
		m.inputHistoryIndex += direction
	}

	if m.inputHistoryIndex < 0 {
		m.inputHistoryIndex = 0
	}
	if m.inputHistoryIndex >= len(m.inputHistory) {
		m.inputHistoryIndex = -1
		m.commandInput.SetValue("")
		return
	}
	m.commandInput.SetValue(m.inputHistory[m.inputHistoryIndex])
	m.commandInput.CursorEnd()
}

func (m *AppModel) clearHistory() {
	m.history = nil
	for id := range m.pending {
		delete(m.pending, id)
	}
	m.refreshViewport()
}

func (m *AppModel) quit() tea.Cmd {
	m.bridge.Stop()
	return tea.Quit
}
