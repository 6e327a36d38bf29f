package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestComponentAndContext(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, slog.LevelInfo, false)
	defer InitWithWriter(&bytes.Buffer{}, slog.LevelInfo, false)

	ctx := ContextWithPath(ContextWithChannel(context.Background(), "abuse"), "abuse/2024-03-01")
	WithContext(ctx, Component("archive")).Info("opened")

	out := buf.String()
	for _, want := range []string{"component=archive", "channel=abuse", "path=abuse/2024-03-01", "msg=opened"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}
