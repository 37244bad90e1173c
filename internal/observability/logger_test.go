package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vibe/internal/config"
)

func TestWithFieldsAddsAttributes(t *testing.T) {
	prev := Logger()
	defer SetLogger(prev)

	var buf bytes.Buffer
	SetLogger(NewLogger(&buf, slog.LevelInfo))
	WithFields("component", "session").Info("cleared", "entries", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["component"] != "session" || rec["msg"] != "cleared" || rec["entries"] != float64(3) {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	prev := Logger()
	defer SetLogger(prev)

	var buf bytes.Buffer
	SetLogger(NewLogger(&buf, slog.LevelWarn))
	Logger().Info("hidden")
	Logger().Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestSetupWritesFile(t *testing.T) {
	prev := Logger()
	defer SetLogger(prev)

	path := filepath.Join(t.TempDir(), "nested", "vibe.log")
	closeFn, err := Setup(config.LogConfig{Level: "debug", Path: path})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	Logger().Debug("hello file")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Fatalf("log file missing record: %q", data)
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Setup(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected setup error")
	}
}
