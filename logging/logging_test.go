package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{JSON: true, Output: &buf})
	logger.Info("scan completed", zap.Int("open", 2))
	logger.Debug("hidden")
	logger.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 (debug must be filtered): %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("entry is not JSON: %v", err)
	}
	if entry["message"] != "scan completed" || entry["level"] != "INFO" || entry["open"] != float64(2) {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNew_DebugAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "portwarden.log")

	logger := New(Options{Debug: true, File: path, Output: &buf})
	logger.Debug("probe failed", zap.String("reason", "timeout"))
	logger.Sync()

	if !strings.Contains(buf.String(), "probe failed") {
		t.Fatalf("console output lacks the debug entry: %q", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "reason") {
		t.Fatalf("log file lacks the entry: %q", data)
	}
}

func TestLogger_Shared(t *testing.T) {
	if Logger() != Logger() {
		t.Fatalf("Logger returned different instances")
	}
}
