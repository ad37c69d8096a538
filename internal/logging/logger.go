// Package logging provides structured logging capabilities for the DGD console.
// It implements a centralized logging strategy with configurable log levels and output formats.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of log messages
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger provides structured logging with context support
type Logger struct {
	logger    *slog.Logger
	level     LogLevel
	component string
}

// Config represents logging configuration
type Config struct {
	Level     LogLevel
	Format    string // "json" or "text"
	Output    string // "stdout", "stderr", "discard", or file path
	Component string
}

// DefaultConfig returns a sensible default logging configuration
func DefaultConfig() Config {
	return Config{
		Level:     InfoLevel,
		Format:    "text",
		Output:    "stderr",
		Component: "console",
	}
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	var output io.Writer
	switch config.Output {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	case "discard":
		output = io.Discard
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
		output = file
	}

	return NewLoggerWithWriter(config, output), nil
}

// NewLoggerWithWriter creates a logger that writes to an arbitrary writer
func NewLoggerWithWriter(config Config, output io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:       slogLevel(config.Level),
		ReplaceAttr: redactCredentials,
	}

	var handler slog.Handler
	switch config.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		logger:    slog.New(handler),
		level:     config.Level,
		component: config.Component,
	}
}

// redactCredentials keeps passwords out of every log line, whatever the handler.
func redactCredentials(groups []string, a slog.Attr) slog.Attr {
	if a.Key == "token" || strings.Contains(strings.ToLower(a.Key), "password") {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

// slogLevel converts our LogLevel to slog.Level
func slogLevel(level LogLevel) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a textual level to a LogLevel, defaulting to info
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// WithContext creates a new logger with additional context
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{
		logger:    l.logger.With(slog.String("component", l.component)),
		level:     l.level,
		component: l.component,
	}
}

// WithComponent creates a new logger for a specific component
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		logger:    l.logger.With(slog.String("component", component)),
		level:     l.level,
		component: component,
	}
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		logger:    l.logger.With(slog.Any(key, value)),
		level:     l.level,
		component: l.component,
	}
}

// WithFields adds multiple fields to the logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		logger:    l.logger.With(args...),
		level:     l.level,
		component: l.component,
	}
}

// Debug logs a debug level message
func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.level <= DebugLevel {
		l.logger.Debug(msg, args...)
	}
}

// Info logs an info level message
func (l *Logger) Info(msg string, args ...interface{}) {
	if l.level <= InfoLevel {
		l.logger.Info(msg, args...)
	}
}

// Warn logs a warning level message
func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.level <= WarnLevel {
		l.logger.Warn(msg, args...)
	}
}

// Error logs an error level message
func (l *Logger) Error(msg string, args ...interface{}) {
	if l.level <= ErrorLevel {
		l.logger.Error(msg, args...)
	}
}

// LogConnectionAttempt logs connection attempt details
func (l *Logger) LogConnectionAttempt(address string, username string, attempt int) {
	l.Info("Attempting connection",
		slog.String("address", address),
		slog.String("username", username),
		slog.Int("attempt", attempt))
}

// LogConnectionFailure logs connection failure with detailed context
func (l *Logger) LogConnectionFailure(address string, err error, duration time.Duration) {
	l.Error("Connection failed",
		slog.String("address", address),
		slog.String("error", err.Error()),
		slog.Duration("attempt_duration", duration))
}

// LogSessionTransition logs a session state change
func (l *Logger) LogSessionTransition(from string, to string, reason string) {
	l.Debug("Session state change",
		slog.String("from", from),
		slog.String("to", to),
		slog.String("reason", reason))
}

// LogCommandSent logs an outbound command. Login-phase payloads are not
// logged because they carry credentials.
func (l *Logger) LogCommandSent(id int, kind string, payload string) {
	l.Debug("Command sent",
		slog.Int("id", id),
		slog.String("kind", kind),
		slog.String("payload", payload))
}

// LogCommandReceived logs the delivery of a reply to its command
func (l *Logger) LogCommandReceived(id int, success bool) {
	l.Debug("Command reply delivered",
		slog.Int("id", id),
		slog.Bool("success", success))
}

// LogProvisioningOutcome logs the result of one helper check
func (l *Logger) LogProvisioningOutcome(path string, outcome string, code int) {
	l.Info("Helper check completed",
		slog.String("helper", path),
		slog.String("outcome", outcome),
		slog.Int("code", code))
}

// LogConfigLoad logs configuration loading operations
func (l *Logger) LogConfigLoad(configPath string, profileName string) {
	l.Debug("Loading configuration",
		slog.String("config_path", configPath),
		slog.String("profile", profileName))
}

// LogConfigError logs configuration-related errors
func (l *Logger) LogConfigError(operation string, err error) {
	l.Error("Configuration error",
		slog.String("operation", operation),
		slog.String("error", err.Error()))
}

// LogAuthOperation logs authentication-related operations
func (l *Logger) LogAuthOperation(operation string, source string) {
	l.Debug("Authentication operation",
		slog.String("operation", operation),
		slog.String("password_source", source))
}

// LogUIStateChange logs user interface state transitions
func (l *Logger) LogUIStateChange(from string, to string, reason string) {
	l.Debug("UI state change",
		slog.String("from", from),
		slog.String("to", to),
		slog.String("reason", reason))
}

// Global logger instance
var (
	globalLogger *Logger
	globalMutex  sync.Mutex
)

// InitGlobalLogger initializes the global logger with the specified configuration
func InitGlobalLogger(config Config) error {
	logger, err := NewLogger(config)
	if err != nil {
		return fmt.Errorf("failed to initialize global logger: %w", err)
	}
	globalMutex.Lock()
	globalLogger = logger
	globalMutex.Unlock()
	return nil
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	if globalLogger == nil {
		// Fallback to default configuration if not initialized
		globalLogger, _ = NewLogger(DefaultConfig())
	}
	return globalLogger
}

// Component-specific logger creators
func GetProtocolLogger() *Logger {
	return GetGlobalLogger().WithComponent("protocol")
}

func GetProvisionerLogger() *Logger {
	return GetGlobalLogger().WithComponent("provisioner")
}

func GetConfigLogger() *Logger {
	return GetGlobalLogger().WithComponent("config")
}

func GetAuthLogger() *Logger {
	return GetGlobalLogger().WithComponent("auth")
}

func GetUILogger() *Logger {
	return GetGlobalLogger().WithComponent("ui")
}

func GetMockLogger() *Logger {
	return GetGlobalLogger().WithComponent("mockconsole")
}

func GetRegistryLogger() *Logger {
	return GetGlobalLogger().WithComponent("registry")
}
