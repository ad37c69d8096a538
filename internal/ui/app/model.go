// Package app implements the interactive console: a scrolling history of
// evaluated expressions and their results above a command input, driven by
// a session with the administrative console.
package app

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/universal-console/dgdconsole/internal/content"
	"github.com/universal-console/dgdconsole/internal/errors"
	"github.com/universal-console/dgdconsole/internal/interfaces"
	"github.com/universal-console/dgdconsole/internal/logging"
)

// Renderer is the content renderer surface the console needs
type Renderer interface {
	interfaces.ContentRenderer
	RenderTable(table *content.TableContent, theme *interfaces.Theme) string
	RenderMessage(kind, message string) string
	Collapsible() *content.CollapsibleManager
}

// EntryKind classifies history entries
type EntryKind int

const (
	EntryCommand EntryKind = iota
	EntryResult
	EntryMessage
	EntryError
)

// HistoryEntry is one block of the scrollback
type HistoryEntry struct {
	Timestamp time.Time
	Kind      EntryKind
	ID        int
	Command   string
	Text      string
	Pending   bool
	Duration  time.Duration
}

// AppModel is the bubbletea model of the interactive console
type AppModel struct {
	profile  *interfaces.Profile
	session  interfaces.Session
	renderer Renderer
	theme    *interfaces.Theme
	bridge   *EventBridge
	handler  *errors.Handler
	logger   *logging.Logger

	// Status report on the first ready of the process
	showStatus  bool
	statusShown bool

	history           []HistoryEntry
	pending           map[int]int // command id -> history index
	submitted         map[int]time.Time
	lastResultID      int
	maxHistorySize    int
	commandInput      textinput.Model
	inputHistory      []string
	inputHistoryIndex int

	viewport viewport.Model
	spinner  spinner.Model

	lastError     *errors.ProcessedError
	statusMessage string

	terminalWidth  int
	terminalHeight int
	headerHeight   int
	inputHeight    int
}

// NewAppModel creates the console model. The bridge must be the one whose
// callbacks were given to the session.
func NewAppModel(
	profile *interfaces.Profile,
	session interfaces.Session,
	renderer Renderer,
	theme *interfaces.Theme,
	bridge *EventBridge,
) *AppModel {
	commandInput := textinput.New()
	commandInput.Placeholder = "Enter an expression, or /help"
	commandInput.Prompt = "> "
	commandInput.Width = 50
	commandInput.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &AppModel{
		profile:           profile,
		session:           session,
		renderer:          renderer,
		theme:             theme,
		bridge:            bridge,
		handler:           errors.NewHandler(),
		logger:            logging.GetUILogger(),
		showStatus:        profile.ShowStatus,
		pending:           make(map[int]int),
		submitted:         make(map[int]time.Time),
		lastResultID:      -1,
		maxHistorySize:    1000,
		commandInput:      commandInput,
		inputHistoryIndex: -1,
		viewport:          viewport.New(80, 20),
		spinner:           spin,
		headerHeight:      2,
		inputHeight:       3,
	}
}

// Init implements tea.Model
func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.bridge.Listen(),
	)
}

// SetTerminalSize lays the panes out for the terminal
func (m *AppModel) SetTerminalSize(width, height int) {
	m.terminalWidth = width
	m.terminalHeight = height

	available := height - m.headerHeight - m.inputHeight - 2
	if available < 3 {
		available = 3
	}
	m.viewport.Width = width
	m.viewport.Height = available

	if inputWidth := width - 6; inputWidth > 20 {
		m.commandInput.Width = inputWidth
	}
	m.refreshViewport()
}

// History returns a copy of the scrollback
func (m *AppModel) History() []HistoryEntry {
	return append([]HistoryEntry(nil), m.history...)
}

// PendingCount returns the number of expressions awaiting a reply
func (m *AppModel) PendingCount() int {
	return len(m.pending)
}

func (m *AppModel) addToHistory(entry HistoryEntry) int {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	m.history = append(m.history, entry)

	if overflow := len(m.history) - m.maxHistorySize; overflow > 0 {
		m.history = m.history[overflow:]
		for id, idx := range m.pending {
			if idx < overflow {
				delete(m.pending, id)
			} else {
				m.pending[id] = idx - overflow
			}
		}
	}

	m.refreshViewport()
	return len(m.history) - 1
}

func (m *AppModel) addMessage(text string) {
	m.addToHistory(HistoryEntry{Kind: EntryMessage, Text: text})
}

func (m *AppModel) addToInputHistory(command string) {
	if n := len(m.inputHistory); n > 0 && m.inputHistory[n-1] == command {
		m.inputHistoryIndex = -1
		return
	}
	m.inputHistory = append(m.inputHistory, command)
	m.inputHistoryIndex = -1
}

// Close stops event delivery and closes the session
func (m *AppModel) Close() error {
	m.bridge.Stop()
	return m.session.Close()
}
