package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventOpen       EventType = "open"
	EventCreate     EventType = "create"
	EventUpgrade    EventType = "upgrade"
	EventBoundary   EventType = "boundary"
	EventDowngrade  EventType = "downgrade"
	EventRebuild    EventType = "rebuild"
	EventReset      EventType = "reset"
	EventCorruption EventType = "corruption"
	EventVerify     EventType = "verify"
	EventScan       EventType = "scan"
	EventError      EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single schema lifecycle event
type Event struct {
	Timestamp   time.Time         `json:"ts"`
	Level       EventLevel        `json:"level"`
	Event       EventType         `json:"event"`
	RunID       string            `json:"run_id,omitempty"`
	Database    string            `json:"database,omitempty"`
	FromVersion int               `json:"from_version,omitempty"`
	ToVersion   int               `json:"to_version,omitempty"`
	Boundary    int               `json:"boundary,omitempty"`
	Name        string            `json:"name,omitempty"`
	Path        string            `json:"path,omitempty"`
	Rows        int64             `json:"rows,omitempty"`
	Duration    int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error       string            `json:"error,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	// Append so that several runs within one second share a file
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogTransition logs the outcome of a migration run
func (l *EventLogger) LogTransition(event EventType, runID, database string, from, to int, duration time.Duration, err error) error {
	level := LevelInfo
	if event == EventDowngrade || event == EventRebuild {
		level = LevelWarning
	}
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:       level,
		Event:       event,
		RunID:       runID,
		Database:    database,
		FromVersion: from,
		ToVersion:   to,
		Duration:    duration.Milliseconds(),
		Error:       errMsg,
	})
}

// LogBoundary logs one applied version boundary
func (l *EventLogger) LogBoundary(runID, database string, version int, name string, rows int64, duration time.Duration, err error) error {
	level := LevelDebug
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventBoundary,
		RunID:    runID,
		Database: database,
		Boundary: version,
		Name:     name,
		Rows:     rows,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
	})
}

// LogReset logs a pristine reset and the number of objects it dropped
func (l *EventLogger) LogReset(runID, database string, dropped int) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventReset,
		RunID:    runID,
		Database: database,
		Extra: map[string]string{
			"dropped": fmt.Sprintf("%d", dropped),
		},
	})
}

// LogCorruption logs a database found unusable on open
func (l *EventLogger) LogCorruption(database string, err error) error {
	return l.Log(&Event{
		Level:    LevelError,
		Event:    EventCorruption,
		Database: database,
		Error:    err.Error(),
	})
}

// LogVerify logs a structural verification and its differences
func (l *EventLogger) LogVerify(database string, version int, diffs []string) error {
	level := LevelInfo
	extra := map[string]string{
		"differences": fmt.Sprintf("%d", len(diffs)),
	}
	if len(diffs) > 0 {
		level = LevelError
		extra["first"] = diffs[0]
	}

	return l.Log(&Event{
		Level:     level,
		Event:     EventVerify,
		Database:  database,
		ToVersion: version,
		Extra:     extra,
	})
}

// LogScan logs a file inserted by the scanner
func (l *EventLogger) LogScan(path string, mediaType int, err error) error {
	level := LevelDebug
	errMsg := ""
	if err != nil {
		level = LevelWarning
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level: level,
		Event: EventScan,
		Path:  path,
		Error: errMsg,
		Extra: map[string]string{
			"media_type": fmt.Sprintf("%d", mediaType),
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, database string, err error) error {
	return l.Log(&Event{
		Level:    LevelError,
		Event:    event,
		Database: database,
		Error:    err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
