package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("%q -> %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, c, err := New(Options{Level: "info", Out: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()
	l.Debug().Msg("hidden")
	l.Info().Str("model", "gpt-4o").Msg("hello")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if m["model"] != "gpt-4o" || m["message"] != "hello" || m["time"] == nil {
		t.Fatalf("unexpected record: %v", m)
	}
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(Options{Format: "console", Out: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "hello") {
		t.Fatalf("unexpected console output: %q", buf.String())
	}
}

func TestNewFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "logs", "tokenizerd.log")
	l, c, err := New(Options{File: p})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Info().Msg("to file")
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "to file") {
		t.Fatalf("log file missing record: %q", b)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatalf("expected level error")
	}
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatalf("expected format error")
	}
}
