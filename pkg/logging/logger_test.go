package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// setupTestDir points the logger at a temporary directory and resets global state
func setupTestDir(t *testing.T) (cleanup func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "letterboxio-logging-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	origLogDir := logDir
	origInitErr := initErr
	origRunID := runID

	logDir = tempDir
	initErr = nil
	initOnce = sync.Once{}
	runID = ""
	runIDOnce = sync.Once{}

	return func() {
		logDir = origLogDir
		initErr = origInitErr
		initOnce = sync.Once{}
		runID = origRunID
		runIDOnce = sync.Once{}

		os.RemoveAll(tempDir)
	}
}

func TestNewLogger(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("test-component")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.component != "test-component" {
		t.Errorf("Expected component 'test-component', got %q", logger.component)
	}
	if logger.RunID() == "" {
		t.Error("Expected non-empty run ID")
	}
	if _, err := os.Stat(logger.LogPath()); os.IsNotExist(err) {
		t.Errorf("Log file does not exist at %s", logger.LogPath())
	}
}

func TestLoggerFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("test", &buf)

	logger.Printf("Test message %d", 123)
	logger.Debugf("Debug message")
	logger.Infof("Info message")
	logger.Warnf("Warning message")
	logger.Errorf("Error message")

	expectedPatterns := []string{
		"[test] [INFO] Test message 123",
		"[test] [DEBUG] Debug message",
		"[test] [INFO] Info message",
		"[test] [WARN] Warning message",
		"[test] [ERROR] Error message",
	}
	for _, pattern := range expectedPatterns {
		if !strings.Contains(buf.String(), pattern) {
			t.Errorf("Log content missing expected pattern: %q\nContent:\n%s", pattern, buf.String())
		}
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("queue", &buf)
	logger.SetLevel(LevelWarn)

	derived := logger.With("session")
	derived.Infof("dropped")
	derived.Warnf("kept")
	logger.Debugf("dropped too")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("Expected messages below warn to be dropped, got:\n%s", out)
	}
	if !strings.Contains(out, "[session] [WARN] kept") {
		t.Errorf("Expected derived logger to write with its own component, got:\n%s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"Warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"loud":    LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMultipleComponentsShareFile(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger1, err := NewLogger("component1")
	if err != nil {
		t.Fatalf("Failed to create logger1: %v", err)
	}
	logger2, err := NewLogger("component2")
	if err != nil {
		t.Fatalf("Failed to create logger2: %v", err)
	}

	if logger1.RunID() != logger2.RunID() {
		t.Errorf("Expected same run ID, got %q and %q", logger1.RunID(), logger2.RunID())
	}
	if logger1.LogPath() != logger2.LogPath() {
		t.Errorf("Expected same log path, got %q and %q", logger1.LogPath(), logger2.LogPath())
	}

	logger1.Printf("Message from component1")
	logger2.Printf("Message from component2")

	content, err := os.ReadFile(logger1.LogPath())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "[component1]") {
		t.Error("Log missing component1 entries")
	}
	if !strings.Contains(string(content), "[component2]") {
		t.Error("Log missing component2 entries")
	}

	if err := logger1.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := logger1.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestLogPathFormat(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	fileName := filepath.Base(logger.LogPath())
	if !strings.HasSuffix(fileName, "-letterboxio.log") {
		t.Errorf("Expected log file to end with '-letterboxio.log', got %q", fileName)
	}
	if runPart := strings.TrimSuffix(fileName, "-letterboxio.log"); !strings.Contains(runPart, "-") {
		t.Errorf("Expected run ID part to be a UUID, got %q", runPart)
	}
}
