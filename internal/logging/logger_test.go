package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_CreatesDirAndWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	log, err := New("info", dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Info("test_message_from_logging_test")
	log.Debug("debug_is_filtered")
	_ = log.Sync()

	b, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if !strings.Contains(string(b), "test_message_from_logging_test") {
		t.Fatalf("message not written: %q", b)
	}
	if strings.Contains(string(b), "debug_is_filtered") {
		t.Fatalf("debug entry should be filtered at info level")
	}
	if !strings.Contains(string(b), `"ts":`) {
		t.Fatalf("want ts time key: %q", b)
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", t.TempDir()); err == nil {
		t.Fatalf("want error for unknown level")
	}
}
