// Package log is the structured logger shared by the policy engine, its loaders
// and the rpzctl command. Fields are passed as maps so call sites stay free of
// zap types.
package log

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global Logger = newZapLogger(false, zapcore.InfoLevel)

// Logger is the logging surface every component receives by injection.
type Logger interface {
	Info(fields map[string]any, msg string)
	Error(fields map[string]any, msg string)
	Debug(fields map[string]any, msg string)
	Warn(fields map[string]any, msg string)
	Panic(fields map[string]any, msg string)
	Fatal(fields map[string]any, msg string)
}

// SetLogger replaces the global logger instance.
func SetLogger(l Logger) {
	global = l
}

// GetLogger returns the current global logger instance.
func GetLogger() Logger {
	return global
}

// Configure installs a zap logger for env ("dev" or "prod") at the given level.
// Anything other than "prod" gets the colored development encoder.
func Configure(env, level string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	global = newZapLogger(env != "prod", lvl)
	return nil
}

// With returns a logger that adds fields to every entry written through l.
// Fields given at the call site win over the bound ones.
func With(l Logger, fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	return &boundLogger{next: l, fields: fields}
}

func Info(fields map[string]any, msg string)  { global.Info(fields, msg) }
func Error(fields map[string]any, msg string) { global.Error(fields, msg) }
func Debug(fields map[string]any, msg string) { global.Debug(fields, msg) }
func Warn(fields map[string]any, msg string)  { global.Warn(fields, msg) }
func Panic(fields map[string]any, msg string) { global.Panic(fields, msg) }
func Fatal(fields map[string]any, msg string) { global.Fatal(fields, msg) }

type zapLogger struct {
	base *zap.Logger
}

func newZapLogger(dev bool, level zapcore.Level) Logger {
	var config zap.Config
	if dev {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.MessageKey = "msg"
	config.EncoderConfig.LevelKey = "level"

	logger, err := config.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return &zapLogger{base: logger}
}

func (l *zapLogger) Info(fields map[string]any, msg string) {
	l.base.Info(msg, zapFields(fields)...)
}

func (l *zapLogger) Error(fields map[string]any, msg string) {
	l.base.Error(msg, zapFields(fields)...)
}

// Debug skips field conversion when debug is disabled; it sits on the query path.
func (l *zapLogger) Debug(fields map[string]any, msg string) {
	if !l.base.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	l.base.Debug(msg, zapFields(fields)...)
}

func (l *zapLogger) Warn(fields map[string]any, msg string) {
	l.base.Warn(msg, zapFields(fields)...)
}

func (l *zapLogger) Panic(fields map[string]any, msg string) {
	l.base.Panic(msg, zapFields(fields)...)
}

func (l *zapLogger) Fatal(fields map[string]any, msg string) {
	l.base.Fatal(msg, zapFields(fields)...)
}

func zapFields(m map[string]any) []zap.Field {
	fields := make([]zap.Field, 0, len(m))
	for k, v := range m {
		if err, ok := v.(error); ok {
			fields = append(fields, zap.NamedError(k, err))
			continue
		}
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

// boundLogger merges a fixed field set into each call.
type boundLogger struct {
	next   Logger
	fields map[string]any
}

func (b *boundLogger) merge(fields map[string]any) map[string]any {
	out := make(map[string]any, len(b.fields)+len(fields))
	for k, v := range b.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (b *boundLogger) Info(fields map[string]any, msg string)  { b.next.Info(b.merge(fields), msg) }
func (b *boundLogger) Error(fields map[string]any, msg string) { b.next.Error(b.merge(fields), msg) }
func (b *boundLogger) Debug(fields map[string]any, msg string) { b.next.Debug(b.merge(fields), msg) }
func (b *boundLogger) Warn(fields map[string]any, msg string)  { b.next.Warn(b.merge(fields), msg) }
func (b *boundLogger) Panic(fields map[string]any, msg string) { b.next.Panic(b.merge(fields), msg) }
func (b *boundLogger) Fatal(fields map[string]any, msg string) { b.next.Fatal(b.merge(fields), msg) }

type noopLogger struct{}

func (n *noopLogger) Info(map[string]any, string)  {}
func (n *noopLogger) Error(map[string]any, string) {}
func (n *noopLogger) Debug(map[string]any, string) {}
func (n *noopLogger) Warn(map[string]any, string)  {}
func (n *noopLogger) Panic(map[string]any, string) {}
func (n *noopLogger) Fatal(map[string]any, string) {}

// NewNoopLogger returns a Logger that discards everything.
func NewNoopLogger() Logger {
	return &noopLogger{}
}
