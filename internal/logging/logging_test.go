package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenWritesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shadowshield.log")
	logger, err := Open(path, slog.LevelDebug)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	logger.Info("login outcome", "status", "failed", "attempts", 2)
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "login outcome") || !strings.Contains(out, "attempts=2") {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open("", slog.LevelInfo); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestDiscardClose(t *testing.T) {
	logger := Discard()
	logger.Info("dropped")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
