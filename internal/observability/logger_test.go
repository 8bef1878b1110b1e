package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigureJSONAndSessionID(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "debug", "json")

	ctx := WithSessionID(context.Background(), "abc")
	if SessionIDFromContext(ctx) != "abc" {
		t.Fatalf("expected session id in context")
	}
	LoggerFromContext(ctx).Debug("hello")

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("expected json log line, got %q: %v", buf.String(), err)
	}
	if record["session_id"] != "abc" || record["msg"] != "hello" {
		t.Fatalf("unexpected record: %v", record)
	}

	buf.Reset()
	Configure(&buf, "info", "text")
	LoggerFromContext(context.Background()).Debug("hidden")
	WithFields("component", "test").Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "component=test") {
		t.Fatalf("unexpected text output: %q", buf.String())
	}
}
