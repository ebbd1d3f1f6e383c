package appframe

// Logger defines the interface for framework logging.
// The framework uses structured logging with key-value pairs so that
// embedding applications can control how framework logs appear.
//
// The interface uses variadic arguments in key-value pairs:
//
//	logger.Info("message", "key1", "value1", "key2", "value2")
//
// This signature is satisfied directly by *slog.Logger, and adapters for
// logrus, zap and similar libraries are trivial to write.
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, args ...any)
}

// NoopLogger discards all log output. It is the default logger for
// loaders and frameworks constructed without an explicit one, and is
// convenient in tests.
type NoopLogger struct{}

func (NoopLogger) Info(msg string, args ...any)  {}
func (NoopLogger) Error(msg string, args ...any) {}
func (NoopLogger) Warn(msg string, args ...any)  {}
func (NoopLogger) Debug(msg string, args ...any) {}
