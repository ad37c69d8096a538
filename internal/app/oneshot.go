package app

import (
	"context"

	"github.com/universal-console/dgdconsole/internal/errors"
	"github.com/universal-console/dgdconsole/internal/interfaces"
	"github.com/universal-console/dgdconsole/internal/protocol"
)

// EvaluateOnce connects to profile's console, waits for the handshake,
// evaluates expression and closes the connection. output receives the
// connection's status lines and may be nil.
func (f *SessionFactory) EvaluateOnce(ctx context.Context, profile *interfaces.Profile, expression string, output func(string)) (interfaces.CodeResult, error) {
	opts, err := f.ConnectionOptions(profile)
	if err != nil {
		return interfaces.CodeResult{}, err
	}

	ready := make(chan struct{}, 1)
	failed := make(chan error, 1)
	opts.Output = output
	opts.OnReady = func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	}
	opts.OnError = func(err error) {
		select {
		case failed <- err:
		default:
		}
	}
	// An orderly close from the server reports no error of its own.
	opts.OnClosed = func() {
		select {
		case failed <- errors.NewTransportError("session").
			WithMessage("connection closed by DGD").
			WithCause(protocol.ErrClosed).
			Build():
		default:
		}
	}

	conn, err := protocol.NewConnection(opts)
	if err != nil {
		return interfaces.CodeResult{}, err
	}
	defer conn.Close()

	if err := conn.Connect(ctx); err != nil {
		return interfaces.CodeResult{}, err
	}

	select {
	case <-ready:
	case err := <-failed:
		return interfaces.CodeResult{}, err
	case <-ctx.Done():
		return interfaces.CodeResult{}, timedOut("waiting for the session", conn, ctx.Err())
	}

	results := make(chan interfaces.CodeResult, 1)
	if _, err := conn.SubmitEvaluate(expression, func(r interfaces.CodeResult) { results <- r }); err != nil {
		return interfaces.CodeResult{}, err
	}

	select {
	case r := <-results:
		return r, nil
	case err := <-failed:
		return interfaces.CodeResult{}, err
	case <-ctx.Done():
		return interfaces.CodeResult{}, timedOut("waiting for the reply", conn, ctx.Err())
	}
}

func timedOut(what string, conn *protocol.Connection, cause error) error {
	return errors.NewTransportError("session").
		WithMessagef("timed out %s (state %s)", what, conn.StateName()).
		WithCause(cause).
		Build()
}
