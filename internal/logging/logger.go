// Package logging adapts log/slog to the Nakama runtime.Logger interface so
// the standalone server can run the same code as the Nakama module.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Logger implements runtime.Logger on top of slog.
type Logger struct {
	base   *slog.Logger
	fields map[string]interface{}
}

// New returns a text logger writing to w at the given level.
func New(w io.Writer, level slog.Level) *Logger {
	return FromSlog(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// FromSlog wraps an existing slog logger.
func FromSlog(l *slog.Logger) *Logger {
	return &Logger{base: l}
}

func (l *Logger) Debug(format string, v ...interface{}) { l.log(slog.LevelDebug, format, v) }
func (l *Logger) Info(format string, v ...interface{})  { l.log(slog.LevelInfo, format, v) }
func (l *Logger) Warn(format string, v ...interface{})  { l.log(slog.LevelWarn, format, v) }
func (l *Logger) Error(format string, v ...interface{}) { l.log(slog.LevelError, format, v) }

func (l *Logger) WithField(key string, v interface{}) runtime.Logger {
	return l.WithFields(map[string]interface{}{key: v})
}

func (l *Logger) WithFields(fields map[string]interface{}) runtime.Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	maps.Copy(merged, l.fields)
	maps.Copy(merged, fields)

	attrs := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	return &Logger{base: l.base.With(attrs...), fields: merged}
}

func (l *Logger) Fields() map[string]interface{} {
	return maps.Clone(l.fields)
}

func (l *Logger) log(level slog.Level, format string, v []interface{}) {
	ctx := context.Background()
	if !l.base.Enabled(ctx, level) {
		return
	}
	l.base.Log(ctx, level, fmt.Sprintf(format, v...))
}

var _ runtime.Logger = (*Logger)(nil)
