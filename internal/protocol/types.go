// Package protocol implements the client side of the DGD administrative
// console: transport, framing of sentinel-delimited replies, command
// correlation, the login handshake and helper provisioning.
package protocol

import (
	"errors"
	"time"

	"github.com/universal-console/dgdconsole/internal/interfaces"
)

// Wire constants of the administrative console
const (
	// EvaluatePrefix starts every Evaluate command line.
	EvaluatePrefix = "code "

	// SentinelMarker is the value the helper echoes after every framed reply.
	SentinelMarker = `"##ignore##"`

	// PasswordPrompt must appear in the reply to the username.
	PasswordPrompt = "Password:"

	// CommandPrompt must appear in the reply to the password.
	CommandPrompt = "#"

	// MaxCommandID is the largest id before the counter wraps to 0.
	MaxCommandID = 1<<31 - 1
)

// Connection timing defaults
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadBufferSize = 4096
)

// Sentinel errors returned by Submit. A dropped submission never fires its callback.
var (
	// ErrNotConnected means the transport was gone; a reconnect was triggered and the command dropped.
	ErrNotConnected = errors.New("not connected to DGD, reconnecting")

	// ErrNotReady means an evaluate command was submitted before the session became Ready.
	ErrNotReady = errors.New("session is not ready")

	// ErrNotEvaluate means a non-evaluate payload was submitted after login.
	ErrNotEvaluate = errors.New("only evaluate commands are supported after login")

	// ErrClosed means the connection was explicitly closed.
	ErrClosed = errors.New("connection closed")
)

// SessionState is the lifecycle phase of a Connection
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateAwaitingUsername
	StateAwaitingPassword
	StateProvisioningHelper
	StateReady
	StateClosed
)

// String returns the state name
func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateAwaitingUsername:
		return "AwaitingUsername"
	case StateAwaitingPassword:
		return "AwaitingPassword"
	case StateProvisioningHelper:
		return "ProvisioningHelper"
	case StateReady:
		return "Ready"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// InLoginPhase reports whether replies in this state are matched FIFO.
func (s SessionState) InLoginPhase() bool {
	return s == StateAwaitingUsername || s == StateAwaitingPassword || s == StateProvisioningHelper
}

// Phase selects the correlation strategy for a submitted command
type Phase int

const (
	// PhaseLogin commands carry id 0 and are answered strictly in order.
	PhaseLogin Phase = iota
	// PhaseEvaluate commands get a fresh id and are matched by it.
	PhaseEvaluate
)

// String returns the phase name
func (p Phase) String() string {
	if p == PhaseEvaluate {
		return "evaluate"
	}
	return "login"
}

// Command is one outstanding request owned by the CommandQueue.
type Command struct {
	ID      int
	Phase   Phase
	Payload string

	// Framed login-phase commands expect a sentinel-delimited reply instead of raw text.
	Framed bool

	callback interfaces.ResultCallback
}

// notify hands the reply to the registered callback, if any.
func (c *Command) notify(result interfaces.CodeResult) {
	if c.callback != nil {
		c.callback(result)
	}
}

// ConnectionStatistics tracks traffic over the lifetime of a Connection
type ConnectionStatistics struct {
	ConnectAttempts  int
	CommandsSent     int
	RepliesDelivered int
	Anomalies        int
	LastConnected    time.Time
	LastClosed       time.Time
}
