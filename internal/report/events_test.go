package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("Invalid JSON line %q: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}
	return events
}

func TestNewEventLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer logger.Close()

	if logger.path == "" {
		t.Error("EventLogger path is empty")
	}

	// Verify file exists
	if _, err := os.Stat(logger.path); os.IsNotExist(err) {
		t.Errorf("Event log file was not created at %s", logger.path)
	}

	// Verify filename format
	filename := filepath.Base(logger.path)
	if len(filename) < len("events-20060102-150405.jsonl") {
		t.Errorf("Event log filename format incorrect: %s", filename)
	}
}

func TestEventLogger_LogTransition(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	if err := logger.LogTransition(EventUpgrade, "run-1", "media.db", 900, 1007, 1500*time.Millisecond, nil); err != nil {
		t.Fatalf("LogTransition failed: %v", err)
	}
	if err := logger.LogTransition(EventDowngrade, "run-2", "media.db", 1007, 900, 0, nil); err != nil {
		t.Fatalf("LogTransition failed: %v", err)
	}
	logger.Close()

	events := readEvents(t, logger.path)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}

	up := events[0]
	if up.Event != EventUpgrade || up.Level != LevelInfo {
		t.Errorf("Expected info upgrade event, got %s/%s", up.Level, up.Event)
	}
	if up.FromVersion != 900 || up.ToVersion != 1007 {
		t.Errorf("Expected 900 -> 1007, got %d -> %d", up.FromVersion, up.ToVersion)
	}
	if up.Duration != 1500 {
		t.Errorf("Expected duration 1500ms, got %d", up.Duration)
	}
	if up.RunID != "run-1" {
		t.Errorf("Expected run_id run-1, got %s", up.RunID)
	}

	if events[1].Level != LevelWarning {
		t.Errorf("Expected downgrade to log at warning, got %s", events[1].Level)
	}
}

func TestEventLogger_LogTransitionError(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	cause := errors.New("disk I/O error")
	if err := logger.LogTransition(EventUpgrade, "run-1", "media.db", 900, 1007, 0, cause); err != nil {
		t.Fatalf("LogTransition failed: %v", err)
	}
	logger.Close()

	events := readEvents(t, logger.path)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Level != LevelError {
		t.Errorf("Expected error level, got %s", events[0].Level)
	}
	if events[0].Error != "disk I/O error" {
		t.Errorf("Expected error message, got %q", events[0].Error)
	}
}

func TestEventLogger_LogBoundary(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	if err := logger.LogBoundary("run-1", "media.db", 1000, "owner_package_name", 42, time.Second, nil); err != nil {
		t.Fatalf("LogBoundary failed: %v", err)
	}
	logger.Close()

	events := readEvents(t, logger.path)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Event != EventBoundary || e.Boundary != 1000 || e.Name != "owner_package_name" || e.Rows != 42 {
		t.Errorf("Unexpected boundary event: %+v", e)
	}
}

func TestEventLogger_LogVerify(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	logger.LogVerify("media.db", 1007, nil)
	logger.LogVerify("media.db", 1007, []string{"index volume_name_index: missing", "view video: sql differs"})
	logger.LogReset("run-1", "media.db", 31)
	logger.Close()

	events := readEvents(t, logger.path)
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].Level != LevelInfo || events[0].Extra["differences"] != "0" {
		t.Errorf("Clean verify should be info with 0 differences: %+v", events[0])
	}
	if events[1].Level != LevelError || events[1].Extra["differences"] != "2" {
		t.Errorf("Failed verify should be error with 2 differences: %+v", events[1])
	}
	if events[1].Extra["first"] != "index volume_name_index: missing" {
		t.Errorf("Expected first difference recorded, got %q", events[1].Extra["first"])
	}
	if events[2].Extra["dropped"] != "31" {
		t.Errorf("Expected 31 dropped objects, got %q", events[2].Extra["dropped"])
	}
}

func TestEventLogger_NullLogger(t *testing.T) {
	logger := NullLogger()

	// Should not panic
	err := logger.Log(&Event{Level: LevelInfo, Event: EventOpen})
	if err != nil {
		t.Errorf("NullLogger.Log should not return error, got: %v", err)
	}

	err = logger.LogBoundary("run", "db", 1000, "x", 0, 0, nil)
	if err != nil {
		t.Errorf("NullLogger.LogBoundary should not return error, got: %v", err)
	}

	err = logger.Close()
	if err != nil {
		t.Errorf("NullLogger.Close should not return error, got: %v", err)
	}

	path := logger.Path()
	if path != "" {
		t.Errorf("NullLogger.Path should return empty string, got: %s", path)
	}
}

func TestEventLogger_AutoTimestamp(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer logger.Close()

	// Log event without setting timestamp
	event := &Event{
		Level: LevelInfo,
		Event: EventOpen,
	}

	before := time.Now()
	if err := logger.Log(event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	if event.Timestamp.IsZero() {
		t.Error("Timestamp was not set automatically")
	}
	if event.Timestamp.Before(before) {
		t.Errorf("Timestamp %v is before log call %v", event.Timestamp, before)
	}
}

func TestEventLogger_Concurrent(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				logger.LogBoundary("run", "media.db", 1000+n, "concurrent", int64(j), 0, nil)
			}
		}(i)
	}
	wg.Wait()
	logger.Close()

	events := readEvents(t, logger.path)
	if len(events) != 100 {
		t.Errorf("Expected 100 events, got %d", len(events))
	}
}

func TestEventLogger_LogLevelFiltering(t *testing.T) {
	all := []Event{
		{Level: LevelDebug, Event: EventBoundary},
		{Level: LevelInfo, Event: EventUpgrade},
		{Level: LevelWarning, Event: EventDowngrade},
		{Level: LevelError, Event: EventError},
	}

	testCases := []struct {
		name          string
		minLevel      EventLevel
		expectedCount int
	}{
		{"LevelDebug logs all", LevelDebug, 4},
		{"LevelInfo skips debug", LevelInfo, 3},
		{"LevelWarning skips debug and info", LevelWarning, 2},
		{"LevelError only logs errors", LevelError, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			logger, err := NewEventLogger(tmpDir, tc.minLevel)
			if err != nil {
				t.Fatalf("NewEventLogger failed: %v", err)
			}

			for _, e := range all {
				e := e
				if err := logger.Log(&e); err != nil {
					t.Fatalf("Log failed: %v", err)
				}
			}
			logger.Close()

			if got := len(readEvents(t, logger.path)); got != tc.expectedCount {
				t.Errorf("Expected %d events logged, got %d", tc.expectedCount, got)
			}
		})
	}
}
