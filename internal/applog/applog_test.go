package applog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	got := format(now, "INFO", "autogroup.scheduled", nil, []any{"tab", 42, "title", "Pull Request #7"})
	want := "2024-03-01T12:30:00.000Z INFO autogroup.scheduled tab=42 title=\"Pull Request #7\"\n"
	if got != want {
		t.Errorf("format() = %q, want %q", got, want)
	}
}

func TestFormatError(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	got := format(now, "ERROR", "ws.send", errors.New("broken pipe"), []any{"action", "group", "dangling"})
	if !strings.Contains(got, `err="broken pipe"`) {
		t.Errorf("missing quoted error in %q", got)
	}
	if strings.Contains(got, "dangling") {
		t.Errorf("odd trailing key should be dropped: %q", got)
	}
}

func TestQuoteTruncates(t *testing.T) {
	long := strings.Repeat("a", maxValueLen+50)
	got := quote(long)
	if !strings.HasSuffix(got, truncSuffix) {
		t.Errorf("expected truncation suffix, got %q", got[len(got)-10:])
	}
}

func TestInitWritesFile(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("test.event", "k", "v")
	Warn("test.warn", errors.New("soft"))
	Close()

	data, err := os.ReadFile(filepath.Join(dir, logName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "INFO test.event k=v") {
		t.Errorf("log missing info line: %q", data)
	}
	if !strings.Contains(string(data), "WARN test.warn err=soft") {
		t.Errorf("log missing warn line: %q", data)
	}

	// After Close, logging is a no-op.
	Info("after.close")
}
