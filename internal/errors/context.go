// Package errors provides the error taxonomy of the DGD console. It implements
// structured errors with diagnostic context and decides which kinds of failure
// tear down the connection.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/universal-console/dgdconsole/internal/logging"
)

// ErrorType categorizes different types of errors for appropriate handling
type ErrorType string

const (
	// ErrorTypeTransport is a socket-level failure; it always closes the connection.
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeAuthentication is a rejected username or password; it closes the connection.
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeProvisioning means the helper is missing, stale or uncompilable.
	ErrorTypeProvisioning ErrorType = "provisioning"
	// ErrorTypeCorrelation is a reply that matches no queued command.
	ErrorTypeCorrelation ErrorType = "correlation"
	// ErrorTypeCommand is an application-level failure of one evaluated command.
	ErrorTypeCommand ErrorType = "command"
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ErrorSeverity indicates the impact level of an error
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// ContextualError provides enhanced error information with diagnostic context
type ContextualError struct {
	Type        ErrorType              `json:"type"`
	Severity    ErrorSeverity          `json:"severity"`
	Message     string                 `json:"message"`
	UserMessage string                 `json:"userMessage,omitempty"`
	Code        int                    `json:"code,omitempty"`
	Component   string                 `json:"component"`
	Operation   string                 `json:"operation,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	StackTrace  []string               `json:"stackTrace,omitempty"`
	Cause       error                  `json:"-"`
}

// Error implements the error interface
func (e *ContextualError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Type, e.Message)
}

// Unwrap provides access to the underlying error
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// GetUserMessage returns a user-friendly error message
func (e *ContextualError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// ClosesConnection reports whether this kind of error escalates to closing
// the connection. Only transport and authentication failures do.
func (e *ContextualError) ClosesConnection() bool {
	return e.Type == ErrorTypeTransport || e.Type == ErrorTypeAuthentication
}

// Is matches another *ContextualError of the same type, so callers can test
// with errors.Is(err, &ContextualError{Type: ErrorTypeAuthentication}).
func (e *ContextualError) Is(target error) bool {
	t, ok := target.(*ContextualError)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Code == 0 || t.Code == e.Code)
}

// ErrorBuilder provides a fluent interface for creating contextual errors
type ErrorBuilder struct {
	err          *ContextualError
	logger       *logging.Logger
	captureStack bool
}

// NewErrorBuilder creates a new error builder with default settings
func NewErrorBuilder(errorType ErrorType, component string) *ErrorBuilder {
	return &ErrorBuilder{
		err: &ContextualError{
			Type:      errorType,
			Severity:  SeverityMedium,
			Component: component,
			Context:   make(map[string]interface{}),
			Timestamp: time.Now(),
		},
		logger: logging.GetGlobalLogger().WithComponent(component),
	}
}

// WithLogger overrides the logger the built error is reported to
func (eb *ErrorBuilder) WithLogger(logger *logging.Logger) *ErrorBuilder {
	if logger != nil {
		eb.logger = logger
	}
	return eb
}

// WithSeverity sets the error severity level
func (eb *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	eb.err.Severity = severity
	return eb
}

// WithMessage sets the technical error message
func (eb *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	eb.err.Message = message
	return eb
}

// WithMessagef sets the technical error message from a format string
func (eb *ErrorBuilder) WithMessagef(format string, args ...interface{}) *ErrorBuilder {
	eb.err.Message = fmt.Sprintf(format, args...)
	return eb
}

// WithUserMessage sets a user-friendly error message
func (eb *ErrorBuilder) WithUserMessage(userMessage string) *ErrorBuilder {
	eb.err.UserMessage = userMessage
	return eb
}

// WithCode sets a numeric error code, e.g. a helper check outcome
func (eb *ErrorBuilder) WithCode(code int) *ErrorBuilder {
	eb.err.Code = code
	return eb
}

// WithOperation sets the operation that failed
func (eb *ErrorBuilder) WithOperation(operation string) *ErrorBuilder {
	eb.err.Operation = operation
	return eb
}

// WithCause sets the underlying error that caused this error
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.err.Cause = cause
	return eb
}

// WithContext adds contextual information to the error
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	eb.err.Context[key] = value
	return eb
}

// WithStackTrace enables stack trace capture
func (eb *ErrorBuilder) WithStackTrace() *ErrorBuilder {
	eb.captureStack = true
	return eb
}

// Build creates the contextual error and logs it appropriately
func (eb *ErrorBuilder) Build() *ContextualError {
	if eb.captureStack {
		eb.err.StackTrace = captureStackTrace(3) // Skip Build, caller, and runtime frames
	}

	logFields := map[string]interface{}{
		"error_type": eb.err.Type,
		"severity":   eb.err.Severity,
		"operation":  eb.err.Operation,
	}
	if eb.err.Code != 0 {
		logFields["error_code"] = eb.err.Code
	}
	for k, v := range eb.err.Context {
		logFields["ctx_"+k] = v
	}

	logMessage := eb.err.Message
	if eb.err.Cause != nil {
		logMessage = fmt.Sprintf("%s: %v", eb.err.Message, eb.err.Cause)
	}

	loggerWithFields := eb.logger.WithFields(logFields)

	switch eb.err.Severity {
	case SeverityCritical, SeverityHigh:
		loggerWithFields.Error(logMessage)
	case SeverityMedium:
		loggerWithFields.Warn(logMessage)
	case SeverityLow:
		loggerWithFields.Info(logMessage)
	}

	return eb.err
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) []string {
	var traces []string
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		funcName := "unknown"
		if fn != nil {
			funcName = fn.Name()
		}

		if idx := strings.LastIndex(file, "/"); idx >= 0 {
			file = file[idx+1:]
		}

		traces = append(traces, fmt.Sprintf("%s:%d %s", file, line, funcName))
	}
	return traces
}

// Component-specific error builders
func NewTransportError(component string) *ErrorBuilder {
	return NewErrorBuilder(ErrorTypeTransport, component).WithSeverity(SeverityHigh)
}

func NewAuthenticationError(component string) *ErrorBuilder {
	return NewErrorBuilder(ErrorTypeAuthentication, component).WithSeverity(SeverityHigh)
}

func NewProvisioningError(component string) *ErrorBuilder {
	return NewErrorBuilder(ErrorTypeProvisioning, component).WithSeverity(SeverityHigh)
}

func NewCorrelationAnomaly(component string) *ErrorBuilder {
	return NewErrorBuilder(ErrorTypeCorrelation, component).WithSeverity(SeverityMedium)
}

func NewCommandError(component string) *ErrorBuilder {
	return NewErrorBuilder(ErrorTypeCommand, component).WithSeverity(SeverityLow)
}

func NewConfigurationError(component string) *ErrorBuilder {
	return NewErrorBuilder(ErrorTypeConfiguration, component).WithSeverity(SeverityMedium)
}

// KindOf returns the ErrorType of err if it wraps a ContextualError
func KindOf(err error) (ErrorType, bool) {
	var ce *ContextualError
	if stderrors.As(err, &ce) {
		return ce.Type, true
	}
	return "", false
}
