// Package eventlog appends task events and audit records to an NDJSON file.
package eventlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/iambrandonn/actuator/internal/ndjson"
	"github.com/iambrandonn/actuator/internal/protocol"
)

// EventLog writes protocol messages to an NDJSON file. It is safe for
// concurrent use.
type EventLog struct {
	path    string
	file    *os.File
	encoder *ndjson.Encoder
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewEventLog opens logPath for appending, creating it and its directory
func NewEventLog(logPath string, logger *slog.Logger) (*EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &EventLog{
		path:    logPath,
		file:    file,
		encoder: ndjson.NewEncoder(file, logger),
		logger:  logger,
	}, nil
}

// Path returns the file the log writes to
func (l *EventLog) Path() string {
	return l.path
}

// WriteEvent writes a task event to the log
func (l *EventLog) WriteEvent(evt *protocol.TaskEvent) error {
	return l.write(evt)
}

// WriteAudit writes an audit record to the log
func (l *EventLog) WriteAudit(rec *protocol.AuditRecord) error {
	return l.write(rec)
}

// Emit adapts WriteEvent to task.EmitFunc
func (l *EventLog) Emit(evt protocol.TaskEvent) error {
	if evt.Kind == "" {
		evt.Kind = protocol.MessageKindEvent
	}
	return l.WriteEvent(&evt)
}

// Audit adapts WriteAudit to tool.AuditFunc
func (l *EventLog) Audit(rec protocol.AuditRecord) error {
	if rec.Kind == "" {
		rec.Kind = protocol.MessageKindAudit
	}
	return l.WriteAudit(&rec)
}

func (l *EventLog) write(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("event log %s is closed", l.path)
	}
	return l.encoder.Encode(v)
}

// Close closes the event log file. Writes after Close fail.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
