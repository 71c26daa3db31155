package eventlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iambrandonn/actuator/internal/ndjson"
	"github.com/iambrandonn/actuator/internal/protocol"
)

func TestEventLogWriteRead(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events", "run.ndjson")

	eventLog, err := NewEventLog(logPath, nil)
	if err != nil {
		t.Fatalf("failed to create event log: %v", err)
	}
	defer eventLog.Close()

	if err := eventLog.WriteEvent(&protocol.TaskEvent{
		Kind:       protocol.MessageKindEvent,
		Event:      protocol.EventTaskStarted,
		TaskID:     "task-1",
		Request:    "run the tests",
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("failed to write event: %v", err)
	}

	// Adapters fill in the kind
	if err := eventLog.Audit(protocol.AuditRecord{
		Phase:       protocol.AuditPhasePlan,
		ToolID:      "shell",
		CommandText: "make test",
		Attempt:     1,
	}); err != nil {
		t.Fatalf("failed to write audit record: %v", err)
	}
	if err := eventLog.Emit(protocol.TaskEvent{
		Event:  protocol.EventTaskFinished,
		TaskID: "task-1",
		Status: protocol.FinishOK,
	}); err != nil {
		t.Fatalf("failed to emit event: %v", err)
	}

	if err := eventLog.Close(); err != nil {
		t.Fatalf("failed to close event log: %v", err)
	}

	file, err := os.Open(logPath)
	if err != nil {
		t.Fatalf("failed to open log file for reading: %v", err)
	}
	defer file.Close()

	decoder := ndjson.NewDecoder(file, nil)

	msg1, err := decoder.DecodeEnvelope()
	if err != nil {
		t.Fatalf("failed to decode first message: %v", err)
	}
	if evt, ok := msg1.(*protocol.TaskEvent); !ok || evt.Request != "run the tests" {
		t.Errorf("expected started event, got %#v", msg1)
	}

	msg2, err := decoder.DecodeEnvelope()
	if err != nil {
		t.Fatalf("failed to decode second message: %v", err)
	}
	if rec, ok := msg2.(*protocol.AuditRecord); !ok || rec.CommandText != "make test" {
		t.Errorf("expected audit record, got %#v", msg2)
	}

	msg3, err := decoder.DecodeEnvelope()
	if err != nil {
		t.Fatalf("failed to decode third message: %v", err)
	}
	if evt, ok := msg3.(*protocol.TaskEvent); !ok || evt.Status != protocol.FinishOK {
		t.Errorf("expected finished event, got %#v", msg3)
	}

	if _, err := decoder.DecodeEnvelope(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestEventLogAppends(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.ndjson")

	for i := 0; i < 2; i++ {
		eventLog, err := NewEventLog(logPath, nil)
		if err != nil {
			t.Fatalf("failed to create event log: %v", err)
		}
		if err := eventLog.Emit(protocol.TaskEvent{Event: protocol.EventTaskStarted, TaskID: fmt.Sprintf("task-%d", i)}); err != nil {
			t.Fatalf("failed to emit: %v", err)
		}
		eventLog.Close()
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if got := countLines(string(data)); got != 2 {
		t.Errorf("got %d lines, want 2", got)
	}
}

func TestEventLogConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.ndjson")
	eventLog, err := NewEventLog(logPath, nil)
	if err != nil {
		t.Fatalf("failed to create event log: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := eventLog.Emit(protocol.TaskEvent{
				Event:  protocol.EventTaskStreamChunk,
				TaskID: "task-1",
				Chunk:  fmt.Sprintf("chunk %d", i),
			}); err != nil {
				t.Errorf("emit %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	eventLog.Close()

	file, err := os.Open(logPath)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer file.Close()

	decoder := ndjson.NewDecoder(file, nil)
	count := 0
	for {
		var evt protocol.TaskEvent
		err := decoder.Decode(&evt)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("interleaved write at line %d: %v", decoder.Line(), err)
		}
		count++
	}
	if count != 50 {
		t.Errorf("decoded %d events, want 50", count)
	}
}

func TestEventLogWriteAfterClose(t *testing.T) {
	eventLog, err := NewEventLog(filepath.Join(t.TempDir(), "run.ndjson"), nil)
	if err != nil {
		t.Fatalf("failed to create event log: %v", err)
	}
	if err := eventLog.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := eventLog.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if err := eventLog.Emit(protocol.TaskEvent{Event: protocol.EventTaskStarted}); err == nil {
		t.Error("expected error writing to a closed log")
	}
}

func TestEventLogDirectoryCreation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "dirs", "events", "test.ndjson")

	eventLog, err := NewEventLog(logPath, nil)
	if err != nil {
		t.Fatalf("failed to create event log: %v", err)
	}
	defer eventLog.Close()

	if _, err := os.Stat(filepath.Dir(logPath)); os.IsNotExist(err) {
		t.Error("log directory was not created")
	}
	if eventLog.Path() != logPath {
		t.Errorf("Path() = %s, want %s", eventLog.Path(), logPath)
	}
}

func countLines(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
