package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"firestore-collection/internal/shared/contextkeys"

	"github.com/sirupsen/logrus"
)

const (
	logFormatJSON = "json"
	logFormatText = "text"

	backendZap = "zap"

	timestampFormat = "2006-01-02T15:04:05.000Z07:00"
	textTimestamp   = "2006-01-02 15:04:05"
)

// Logger defines the interface for structured logging operations
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	WithFields(fields map[string]interface{}) Logger
	WithContext(ctx context.Context) Logger
	WithComponent(component string) Logger
}

// contextFields lists the context keys copied onto every log line
var contextFields = []struct {
	key  interface{}
	name string
}{
	{contextkeys.RequestIDKey, "request_id"},
	{contextkeys.CollectionKey, "collection"},
	{contextkeys.OperationKey, "operation"},
	{contextkeys.TransactionIDKey, "tx_id"},
	{contextkeys.ComponentKey, "component"},
}

func contextString(ctx context.Context, key interface{}) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(key).(string); ok {
		return val
	}
	return ""
}

// New returns the logger for the given backend ("logrus" or "zap").
// Empty arguments fall back to LOG_BACKEND, LOG_LEVEL and LOG_FORMAT.
func New(backend, level, format string) Logger {
	if backend == "" {
		backend = os.Getenv("LOG_BACKEND")
	}
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if format == "" {
		format = envFormat()
	}
	if backend == backendZap {
		return NewZapLogger(level, format)
	}
	return NewLoggerWithOutput(os.Stdout, level, format)
}

// NewLogger creates a logrus logger configured from the environment
func NewLogger() Logger {
	return New("logrus", "", "")
}

// envFormat is LOG_FORMAT, forced to json in production
func envFormat() string {
	switch strings.ToLower(os.Getenv("ENVIRONMENT")) {
	case "production", "prod":
		return logFormatJSON
	}
	return os.Getenv("LOG_FORMAT")
}

// LogrusLogger implements the Logger interface using logrus
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLoggerWithOutput creates a logrus logger writing to w. Unknown levels mean info.
func NewLoggerWithOutput(w io.Writer, level string, format string) Logger {
	l := logrus.New()
	l.SetOutput(w)

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	if format == logFormatJSON {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: textTimestamp})
	}
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

func (l *LogrusLogger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *LogrusLogger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *LogrusLogger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *LogrusLogger) Error(args ...interface{}) { l.entry.Error(args...) }
func (l *LogrusLogger) Fatal(args ...interface{}) { l.entry.Fatal(args...) }

func (l *LogrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *LogrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *LogrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *LogrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *LogrusLogger) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

// WithFields adds structured fields to the logger
func (l *LogrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &LogrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithContext copies request id, collection, operation and transaction id from ctx
func (l *LogrusLogger) WithContext(ctx context.Context) Logger {
	fields := logrus.Fields{}
	for _, cf := range contextFields {
		if v := contextString(ctx, cf.key); v != "" {
			fields[cf.name] = v
		}
	}
	return &LogrusLogger{entry: l.entry.WithFields(fields)}
}

func (l *LogrusLogger) WithComponent(component string) Logger {
	return &LogrusLogger{entry: l.entry.WithField("component", component)}
}

// nopLogger discards everything
type nopLogger struct{}

// Nop returns a Logger that discards all output
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(args ...interface{})                       {}
func (nopLogger) Info(args ...interface{})                        {}
func (nopLogger) Warn(args ...interface{})                        {}
func (nopLogger) Error(args ...interface{})                       {}
func (nopLogger) Fatal(args ...interface{})                       {}
func (nopLogger) Debugf(format string, args ...interface{})       {}
func (nopLogger) Infof(format string, args ...interface{})        {}
func (nopLogger) Warnf(format string, args ...interface{})        {}
func (nopLogger) Errorf(format string, args ...interface{})       {}
func (nopLogger) Fatalf(format string, args ...interface{})       {}
func (n nopLogger) WithFields(map[string]interface{}) Logger      { return n }
func (n nopLogger) WithContext(context.Context) Logger            { return n }
func (n nopLogger) WithComponent(string) Logger                   { return n }
