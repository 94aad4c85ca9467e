package logger

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codeagents/pkg/errors"
)

// Redacted replaces the value of sensitive fields when sensitive logging is off
const Redacted = "[REDACTED]"

var globalLogger atomic.Pointer[Logger]

// sensitiveKeys are field names whose values may carry credentials or source code
var sensitiveKeys = map[string]struct{}{
	"api_key":       {},
	"authorization": {},
	"prompt":        {},
	"response":      {},
	"content":       {},
}

// Options controls global logger construction
type Options struct {
	Level string
	Env   string
	// Format forces "json" or "console"; empty picks by Env
	Format string
	// SensitiveData disables redaction of prompt/response/key fields
	SensitiveData bool
}

// Logger wraps zap.SugaredLogger with optional error tracking and field redaction
type Logger struct {
	*zap.SugaredLogger
	errorTracker  errors.Tracker
	sensitiveData bool
}

// Init initializes the global logger
func Init(opts Options) error {
	var config zap.Config

	if opts.Env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	switch opts.Format {
	case "json":
		config.Encoding = "json"
		config.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	case "console":
		config.Encoding = "console"
	}

	// Parse level
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(opts.Level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return err
	}

	globalLogger.Store(&Logger{
		SugaredLogger: logger.Sugar(),
		sensitiveData: opts.SensitiveData,
	})
	return nil
}

// NewWithCore builds a logger on top of an existing core, used by tests to observe output
func NewWithCore(core zapcore.Core, sensitiveData bool) *Logger {
	return &Logger{
		SugaredLogger: zap.New(core).Sugar(),
		sensitiveData: sensitiveData,
	}
}

// SetGlobal replaces the global logger
func SetGlobal(l *Logger) {
	globalLogger.Store(l)
}

// SetErrorTracker sets the error tracker for automatic error reporting.
// Loggers derived before the call keep their previous tracker.
func SetErrorTracker(tracker errors.Tracker) {
	for {
		current := globalLogger.Load()
		if current == nil {
			return
		}
		if globalLogger.CompareAndSwap(current, current.WithErrorTracker(tracker)) {
			return
		}
	}
}

// Get returns the global logger
func Get() *Logger {
	if l := globalLogger.Load(); l != nil {
		return l
	}

	// Fallback to basic logger
	logger, _ := zap.NewDevelopment()
	globalLogger.CompareAndSwap(nil, &Logger{SugaredLogger: logger.Sugar()})
	return globalLogger.Load()
}

// With creates a child logger with additional fields
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(l.redact(args)...),
		errorTracker:  l.errorTracker,
		sensitiveData: l.sensitiveData,
	}
}

// WithErrorTracker returns a copy of the logger reporting to tracker
func (l *Logger) WithErrorTracker(tracker errors.Tracker) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger,
		errorTracker:  tracker,
		sensitiveData: l.sensitiveData,
	}
}

// Debugw logs a message with redacted key/value pairs
func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.redact(keysAndValues)...)
}

// Infow logs a message with redacted key/value pairs
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, l.redact(keysAndValues)...)
}

// Warnw logs a message with redacted key/value pairs
func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.redact(keysAndValues)...)
}

// Errorw logs a message with redacted key/value pairs and forwards it to the error tracker
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.redact(keysAndValues)...)

	if l.errorTracker != nil {
		err := errors.Wrap(errors.ErrInternal, msg)
		_ = l.errorTracker.CaptureError(context.Background(), err, map[string]string{
			"component": "logger",
		})
	}
}

// Errorf logs a formatted error and optionally sends it to error tracker
func (l *Logger) Errorf(template string, args ...interface{}) {
	l.SugaredLogger.Errorf(template, args...)

	if l.errorTracker != nil {
		err := fmt.Errorf(template, args...)
		_ = l.errorTracker.CaptureError(context.Background(), err, map[string]string{
			"component": "logger",
		})
	}
}

// ErrorWithContext logs an error with context and sends to error tracker
func (l *Logger) ErrorWithContext(ctx context.Context, err error, tags map[string]string) {
	l.SugaredLogger.Errorw(err.Error(), "kind", errors.KindOf(err).String())

	if l.errorTracker != nil {
		_ = l.errorTracker.CaptureError(ctx, err, tags)
	}
}

func (l *Logger) redact(keysAndValues []interface{}) []interface{} {
	if l.sensitiveData || len(keysAndValues) < 2 {
		return keysAndValues
	}

	out := make([]interface{}, len(keysAndValues))
	copy(out, keysAndValues)
	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if !ok {
			continue
		}
		if _, sensitive := sensitiveKeys[key]; sensitive {
			out[i+1] = Redacted
		}
	}
	return out
}

// Convenience functions that use the global logger
func Debugf(template string, args ...interface{}) { Get().Debugf(template, args...) }
func Infof(template string, args ...interface{})  { Get().Infof(template, args...) }
func Warnf(template string, args ...interface{})  { Get().Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { Get().Errorf(template, args...) }
func Fatalf(template string, args ...interface{}) { Get().Fatalf(template, args...) }

// Sync flushes any buffered log entries
func Sync() error {
	if l := globalLogger.Load(); l != nil {
		return l.Sync()
	}
	return nil
}
