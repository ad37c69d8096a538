package protocol

import (
	"fmt"
	"strings"

	"github.com/universal-console/dgdconsole/internal/errors"
	"github.com/universal-console/dgdconsole/internal/interfaces"
)

// logIn runs the handshake: username, password, helper provisioning and the
// canary. Each step is issued from the previous step's reply callback.
func (c *Connection) logIn() {
	if err := c.sendLogin(c.opts.Username, false, c.onUsernameReply); err != nil {
		c.endHandshake(err)
	}
}

func (c *Connection) onUsernameReply(r interfaces.CodeResult) {
	if !strings.Contains(rawText(r), PasswordPrompt) {
		c.closeWithError(c.authError("no password prompt after username",
			fmt.Sprintf("Failed to log in to DGD with user %s.", c.opts.Username)))
		return
	}

	c.setState(StateAwaitingPassword, "password prompt received")
	if err := c.sendLogin(c.opts.Password, false, c.onPasswordReply); err != nil {
		c.endHandshake(err)
	}
}

func (c *Connection) onPasswordReply(r interfaces.CodeResult) {
	if !strings.Contains(rawText(r), CommandPrompt) {
		c.closeWithError(c.authError("no command prompt after password", "DGD password not accepted."))
		return
	}

	c.setState(StateProvisioningHelper, "password accepted")
	c.provisioner.Run(c.onProvisioned)
}

func (c *Connection) onProvisioned(err error) {
	if err != nil {
		// The session stays connected but never becomes Ready.
		c.endHandshake(err)
		return
	}

	canary := EvaluateThroughHelper(HelperObjectName(c.opts.Helper.Path), CanaryExpression)
	if err := c.sendLogin(canary, true, c.onCanaryReply); err != nil {
		c.endHandshake(err)
	}
}

func (c *Connection) onCanaryReply(r interfaces.CodeResult) {
	if !r.Success {
		c.closeWithError(errors.NewProvisioningError("protocol").
			WithLogger(c.logger).
			WithOperation("canary").
			WithMessage("code command is incompatible, unexpected reply: " + abbreviate(r.Raw, 200)).
			WithUserMessage("Code command is incompatible; evaluation will not work properly.").
			Build())
		return
	}

	c.mutex.Lock()
	if c.state != StateProvisioningHelper {
		c.mutex.Unlock()
		return
	}
	c.queue.Resync(r.ID)
	c.setStateLocked(StateReady, "canary succeeded")
	c.lastErr = nil
	c.mutex.Unlock()

	c.message(fmt.Sprintf("Connected to DGD as %s.", c.opts.Username))
	if c.opts.OnReady != nil {
		c.opts.OnReady()
	}
}

func (c *Connection) authError(message, userMessage string) error {
	return errors.NewAuthenticationError("protocol").
		WithLogger(c.logger).
		WithOperation("login").
		WithMessage(message).
		WithUserMessage(userMessage).
		WithContext("username", c.opts.Username).
		Build()
}
