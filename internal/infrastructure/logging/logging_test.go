package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range tests {
		if got := parseLevel(raw); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestNewHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newHandler(&buf, "json", slog.LevelInfo)).Info("relayed", "block", 7)
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"block":7`) {
		t.Fatalf("json output %q", buf.String())
	}
	buf.Reset()
	slog.New(newHandler(&buf, "", slog.LevelInfo)).Info("relayed", "block", 7)
	if !strings.Contains(buf.String(), "block=7") {
		t.Fatalf("text output %q", buf.String())
	}
}

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.log")
	w, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	defer w.Close()
	w.maxSize = 8

	for _, chunk := range []string{"aaaaaa", "bbbbbb", "cccccc"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(current) != "cccccc" {
		t.Fatalf("current file %q", current)
	}
	first, err := os.ReadFile(path + ".1")
	if err != nil || string(first) != "bbbbbb" {
		t.Fatalf("backup .1 %q err %v", first, err)
	}
	second, err := os.ReadFile(path + ".2")
	if err != nil || string(second) != "aaaaaa" {
		t.Fatalf("backup .2 %q err %v", second, err)
	}
}
