package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestContextWithLogger(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := ContextWithLogger(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Fatalf("expected logger from context")
	}
	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("expected nil logger from bare context")
	}
	if got := ContextWithLogger(context.Background(), nil); FromContext(got) != nil {
		t.Fatalf("expected nil logger to be ignored")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		if err != nil {
			t.Fatalf("ParseLevel(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json handler by default", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(&buf, "info", "")
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		logger.Info("hello", "version", 3)

		var record map[string]any
		if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
		}
		if record["msg"] != "hello" {
			t.Fatalf("unexpected message: %v", record["msg"])
		}
	})

	t.Run("text handler filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(&buf, "warn", "text")
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		logger.Info("hidden")
		logger.Warn("shown")

		out := buf.String()
		if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
			t.Fatalf("unexpected output: %q", out)
		}
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		if _, err := New(io.Discard, "info", "xml"); err == nil {
			t.Fatalf("expected error for unknown format")
		}
	})
}
