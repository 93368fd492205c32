package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerFormatsAndFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo)

	l.Debug("hidden %d", 1)
	l.Info("CreateRoom: room %s created", "AB12CD")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked: %s", out)
	}
	if !strings.Contains(out, `msg="CreateRoom: room AB12CD created"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelDebug)

	child := l.WithField("connection", "c1").WithFields(map[string]interface{}{"room": "AB12CD"})
	child.Warn("rejected")

	out := buf.String()
	if !strings.Contains(out, "connection=c1") || !strings.Contains(out, "room=AB12CD") {
		t.Fatalf("fields missing: %s", out)
	}
	fields := child.Fields()
	if fields["connection"] != "c1" || fields["room"] != "AB12CD" {
		t.Fatalf("Fields() = %v", fields)
	}
	if len(l.Fields()) != 0 {
		t.Fatalf("parent picked up child fields: %v", l.Fields())
	}
}
