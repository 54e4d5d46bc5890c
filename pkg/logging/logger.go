// Package logging provides the structured logger shared across the trading
// core: a logrus wrapper carrying a service name and propagating a trace ID
// through context.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ContextKey is the type used for context values carried by this package.
type ContextKey string

const (
	TraceIDKey   ContextKey = "trace_id"
	ComponentKey ContextKey = "component"
)

// Logger wraps logrus.Logger with a fixed service name.
type Logger struct {
	*logrus.Logger
	service string
}

// New builds a Logger for service, with the given level ("debug","info",
// "warn","error") and format ("json" or "text"). Unknown levels default to
// info; unknown formats default to json.
func New(service, level, format string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Logger{Logger: l, service: service}
}

// NewFromEnv builds a Logger for service using LOG_LEVEL/LOG_FORMAT env vars,
// defaulting to info/json.
func NewFromEnv(service string) *Logger {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// SetOutput redirects the underlying logrus output (used by tests).
func (l *Logger) SetOutput(w io.Writer) {
	l.Logger.SetOutput(w)
}

// WithField returns an entry carrying the service name plus one field.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField("service", l.service).WithField(key, value)
}

// WithFields returns an entry carrying the service name plus the given fields.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	fields["service"] = l.service
	return l.Logger.WithFields(fields)
}

// WithContext attaches trace ID and component, if present in ctx, as fields.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	if component, ok := ctx.Value(ComponentKey).(string); ok && component != "" {
		entry = entry.WithField("component", component)
	}
	return entry
}

// ContextWithTraceID returns a child context carrying traceID.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// ContextWithComponent returns a child context carrying a component name.
func ContextWithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, ComponentKey, component)
}
