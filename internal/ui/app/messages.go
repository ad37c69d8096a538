package app

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/universal-console/dgdconsole/internal/interfaces"
)

type (
	// OutputMsg carries a status line from the connection.
	OutputMsg struct{ Text string }

	// ReadyMsg is sent each time the session completes its handshake.
	ReadyMsg struct{}

	// SessionErrorMsg carries an error that ended a handshake or the connection.
	SessionErrorMsg struct{ Err error }

	// ResultMsg is the reply to an evaluated expression.
	ResultMsg struct {
		ID       int
		Result   interfaces.CodeResult
		Duration time.Duration
	}

	// StatusMsg is the reply to a status() request.
	StatusMsg struct {
		Result interfaces.CodeResult
	}

	// MenuRequestedMsg asks the controller to close the session and show the profile menu.
	MenuRequestedMsg struct{}
)

// EventBridge hands connection callbacks, which run on the transport's read
// goroutine, to the bubbletea event loop.
type EventBridge struct {
	events chan tea.Msg
	done   chan struct{}
	once   sync.Once
}

// NewEventBridge creates a bridge buffering up to size messages
func NewEventBridge(size int) *EventBridge {
	return &EventBridge{
		events: make(chan tea.Msg, size),
		done:   make(chan struct{}),
	}
}

// Output is the connection's status-line sink
func (b *EventBridge) Output(text string) {
	b.Send(OutputMsg{Text: text})
}

// Ready is the connection's ready notification
func (b *EventBridge) Ready() {
	b.Send(ReadyMsg{})
}

// Error is the connection's error notification
func (b *EventBridge) Error(err error) {
	b.Send(SessionErrorMsg{Err: err})
}

// Send queues msg for the UI. It blocks while the buffer is full and
// returns immediately once the bridge is stopped.
func (b *EventBridge) Send(msg tea.Msg) {
	select {
	case b.events <- msg:
	case <-b.done:
	}
}

// Listen waits for the next message
func (b *EventBridge) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.events:
			return msg
		case <-b.done:
			return nil
		}
	}
}

// Stop releases every blocked sender and listener
func (b *EventBridge) Stop() {
	b.once.Do(func() { close(b.done) })
}
