package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnlyTransportAndAuthenticationCloseTheConnection(t *testing.T) {
	tests := []struct {
		kind   ErrorType
		closes bool
	}{
		{ErrorTypeTransport, true},
		{ErrorTypeAuthentication, true},
		{ErrorTypeProvisioning, false},
		{ErrorTypeCorrelation, false},
		{ErrorTypeCommand, false},
		{ErrorTypeConfiguration, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := NewErrorBuilder(tt.kind, "test").WithMessage("boom").Build()
			assert.Equal(t, tt.closes, err.ClosesConnection())
		})
	}
}

func TestContextualErrorUnwrapsAndMatches(t *testing.T) {
	err := NewTransportError("protocol").
		WithMessage("read failed").
		WithCause(io.ErrUnexpectedEOF).
		Build()
	wrapped := fmt.Errorf("session: %w", err)

	assert.True(t, stderrors.Is(wrapped, io.ErrUnexpectedEOF))
	assert.True(t, stderrors.Is(wrapped, &ContextualError{Type: ErrorTypeTransport}))
	assert.False(t, stderrors.Is(wrapped, &ContextualError{Type: ErrorTypeAuthentication}))

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeTransport, kind)

	_, ok = KindOf(io.EOF)
	assert.False(t, ok)
}

func TestIsMatchesProvisioningCode(t *testing.T) {
	err := NewProvisioningError("provisioner").WithCode(-3).WithMessage("wrong version").Build()

	assert.True(t, stderrors.Is(err, &ContextualError{Type: ErrorTypeProvisioning}))
	assert.True(t, stderrors.Is(err, &ContextualError{Type: ErrorTypeProvisioning, Code: -3}))
	assert.False(t, stderrors.Is(err, &ContextualError{Type: ErrorTypeProvisioning, Code: -2}))
}

func TestStatusLine(t *testing.T) {
	h := NewHandler()

	auth := NewAuthenticationError("protocol").
		WithMessage("no password prompt").
		WithUserMessage("Failed to log in to DGD with user admin.").
		Build()
	assert.Equal(t, "Login failed: Failed to log in to DGD with user admin.", h.StatusLine(auth))

	prov := NewProvisioningError("provisioner").WithCode(-1).WithMessage("helper must be a filename ending with .c").Build()
	assert.Equal(t, "Helper provisioning failed (-1): helper must be a filename ending with .c", h.StatusLine(prov))

	assert.Equal(t, "plain", h.StatusLine(stderrors.New("plain")))
	assert.Equal(t, "", h.StatusLine(nil))
}

func TestStatusLineKeepsFirstLineForNonProvisioning(t *testing.T) {
	h := NewHandler()
	err := NewTransportError("protocol").WithMessage("line one\nline two").Build()
	assert.Equal(t, "Connection error: line one", h.StatusLine(err))
}
