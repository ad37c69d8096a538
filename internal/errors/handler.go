package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ProcessedError represents an error that has been prepared for display.
// It decouples the internal error value from the UI's representation.
type ProcessedError struct {
	Timestamp time.Time
	Kind      ErrorType
	Message   string
	Code      int
	Fatal     bool
}

// Handler turns errors into the single human-readable status line that every
// closure and provisioning failure produces.
type Handler struct {
	prefixes map[ErrorType]string
}

// NewHandler creates a new error handler.
func NewHandler() *Handler {
	return &Handler{
		prefixes: map[ErrorType]string{
			ErrorTypeTransport:      "Connection error",
			ErrorTypeAuthentication: "Login failed",
			ErrorTypeProvisioning:   "Helper provisioning failed",
			ErrorTypeCorrelation:    "Unexpected reply",
			ErrorTypeCommand:        "Command failed",
			ErrorTypeConfiguration:  "Configuration error",
		},
	}
}

// Process classifies err for the UI.
func (h *Handler) Process(err error) (*ProcessedError, error) {
	if err == nil {
		return nil, fmt.Errorf("cannot process a nil error")
	}

	processed := &ProcessedError{
		Timestamp: time.Now(),
		Message:   err.Error(),
	}

	var ce *ContextualError
	if stderrors.As(err, &ce) {
		processed.Kind = ce.Type
		processed.Message = ce.GetUserMessage()
		processed.Code = ce.Code
		processed.Fatal = ce.ClosesConnection()
	}

	return processed, nil
}

// StatusLine renders err as one line of status text.
func (h *Handler) StatusLine(err error) string {
	processed, perr := h.Process(err)
	if perr != nil {
		return ""
	}

	msg := strings.TrimSpace(processed.Message)
	if i := strings.IndexByte(msg, '\n'); i >= 0 && processed.Kind != ErrorTypeProvisioning {
		msg = msg[:i]
	}

	prefix, ok := h.prefixes[processed.Kind]
	if !ok {
		return msg
	}
	if processed.Code != 0 {
		return fmt.Sprintf("%s (%d): %s", prefix, processed.Code, msg)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}
