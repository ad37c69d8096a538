// Package app wires the console together: it opens sessions for profiles and
// switches the terminal between the profile menu and an open session.
package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/universal-console/dgdconsole/internal/logging"
	uiapp "github.com/universal-console/dgdconsole/internal/ui/app"
	"github.com/universal-console/dgdconsole/internal/ui/menu"
)

// activeView determines which model is currently visible and receiving updates.
type activeView int

const (
	menuView activeView = iota
	appView
)

// closer is implemented by session models that own a connection
type closer interface {
	Close() error
}

// ConsoleController switches between the profile menu and a session
type ConsoleController struct {
	menuModel tea.Model
	appModel  tea.Model

	currentView activeView

	width  int
	height int

	logger *logging.Logger
}

// NewConsoleController starts in the menu, or directly in session when
// one was opened for a profile given on the command line. menuModel may be
// nil when there is no menu to return to.
func NewConsoleController(menuModel tea.Model, session tea.Model) *ConsoleController {
	c := &ConsoleController{
		menuModel:   menuModel,
		currentView: menuView,
		logger:      logging.GetUILogger(),
	}
	if session != nil {
		c.appModel = session
		c.currentView = appView
	}
	return c
}

// Init implements tea.Model
func (c *ConsoleController) Init() tea.Cmd {
	if c.currentView == appView {
		return c.appModel.Init()
	}
	return c.menuModel.Init()
}

// InSession reports whether a session is showing
func (c *ConsoleController) InSession() bool {
	return c.currentView == appView
}

// Update delegates to the active model and handles the transitions.
func (c *ConsoleController) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			c.Close()
			return c, tea.Quit
		}

	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height

	case menu.ConnectionResultMsg:
		if msg.Err != nil {
			c.menuModel, cmd = c.menuModel.Update(msg)
			return c, cmd
		}
		c.logger.LogUIStateChange("menu", "session", "connected")
		c.appModel = msg.Model
		c.currentView = appView
		c.appModel, cmd = c.appModel.Update(tea.WindowSizeMsg{Width: c.width, Height: c.height})
		cmds = append(cmds, cmd, c.appModel.Init())
		return c, tea.Batch(cmds...)

	case uiapp.MenuRequestedMsg:
		if c.menuModel == nil {
			c.Close()
			return c, tea.Quit
		}
		c.closeSession()
		c.logger.LogUIStateChange("session", "menu", "requested")
		c.currentView = menuView
		c.menuModel, cmd = c.menuModel.Update(tea.WindowSizeMsg{Width: c.width, Height: c.height})
		return c, tea.Batch(cmd, c.menuModel.Init())
	}

	switch c.currentView {
	case menuView:
		c.menuModel, cmd = c.menuModel.Update(msg)
	case appView:
		c.appModel, cmd = c.appModel.Update(msg)
	}
	return c, cmd
}

// View renders the active model
func (c *ConsoleController) View() string {
	if c.currentView == appView && c.appModel != nil {
		return c.appModel.View()
	}
	if c.menuModel != nil {
		return c.menuModel.View()
	}
	return ""
}

// Close closes the open session, if any
func (c *ConsoleController) Close() {
	c.closeSession()
}

func (c *ConsoleController) closeSession() {
	if c.appModel == nil {
		return
	}
	if s, ok := c.appModel.(closer); ok {
		if err := s.Close(); err != nil {
			c.logger.Debug("Session close failed", "error", err)
		}
	}
	c.appModel = nil
}
