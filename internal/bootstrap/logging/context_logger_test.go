package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithAttrsOverridesByKey(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "debug", "text"))
	ctx = WithAttrs(ctx, slog.String("component", "a"), slog.String("app", "repairdesk"))
	ctx = WithAttrs(ctx, slog.String("component", "b"))
	ctx = WithIncident(ctx, "inc-1")

	Info(ctx, "hello")

	line := buf.String()
	if !strings.Contains(line, "component=b") || strings.Contains(line, "component=a") {
		t.Fatalf("log line = %q, want overridden component", line)
	}
	if !strings.Contains(line, "incident_id=inc-1") || !strings.Contains(line, "app=repairdesk") {
		t.Fatalf("log line = %q, want inherited attrs", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "warn", "json"))

	Debug(ctx, "hidden")
	Info(ctx, "hidden")
	Warn(ctx, "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("output = %q, want debug/info filtered", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("output = %q, want json warn line", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
