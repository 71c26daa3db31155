// Package ledger reads an event log back into task events and audit records.
package ledger

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/iambrandonn/actuator/internal/ndjson"
	"github.com/iambrandonn/actuator/internal/protocol"
)

// Ledger represents a parsed event log with all messages categorized
type Ledger struct {
	Events []*protocol.TaskEvent
	Audits []*protocol.AuditRecord
}

// ReadLedger reads and parses an NDJSON ledger file
func ReadLedger(path string) (*Ledger, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer file.Close()

	return Read(file)
}

// Read parses NDJSON messages from r until EOF
func Read(r io.Reader) (*Ledger, error) {
	ledger := &Ledger{
		Events: make([]*protocol.TaskEvent, 0),
		Audits: make([]*protocol.AuditRecord, 0),
	}

	decoder := ndjson.NewDecoder(r, nil)
	for {
		msg, err := decoder.DecodeEnvelope()
		if errors.Is(err, io.EOF) {
			return ledger, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger: %w", err)
		}

		switch m := msg.(type) {
		case *protocol.TaskEvent:
			ledger.Events = append(ledger.Events, m)
		case *protocol.AuditRecord:
			ledger.Audits = append(ledger.Audits, m)
		}
	}
}

// TaskIDs returns every task that appears in the log, in order of first appearance
func (l *Ledger) TaskIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, evt := range l.Events {
		if evt.TaskID != "" && !seen[evt.TaskID] {
			seen[evt.TaskID] = true
			ids = append(ids, evt.TaskID)
		}
	}
	return ids
}

// EventsFor returns the events of one task in log order
func (l *Ledger) EventsFor(taskID string) []*protocol.TaskEvent {
	var out []*protocol.TaskEvent
	for _, evt := range l.Events {
		if evt.TaskID == taskID {
			out = append(out, evt)
		}
	}
	return out
}

// AuditsFor returns the audit records of one task in log order
func (l *Ledger) AuditsFor(taskID string) []*protocol.AuditRecord {
	var out []*protocol.AuditRecord
	for _, rec := range l.Audits {
		if rec.TaskName == taskID {
			out = append(out, rec)
		}
	}
	return out
}

// GetFinishedEvents returns task_id → last task.finished event
func (l *Ledger) GetFinishedEvents() map[string]*protocol.TaskEvent {
	finished := make(map[string]*protocol.TaskEvent)
	for _, evt := range l.Events {
		if evt.Event == protocol.EventTaskFinished {
			finished[evt.TaskID] = evt
		}
	}
	return finished
}

// LastState returns the state carried by the task's latest state change
func (l *Ledger) LastState(taskID string) (protocol.TaskState, bool) {
	var state protocol.TaskState
	found := false
	for _, evt := range l.Events {
		if evt.TaskID == taskID && evt.Event == protocol.EventTaskStateChanged {
			state = evt.State
			found = true
		}
	}
	return state, found
}

// GetUnfinishedTasks returns tasks that were started but never finished, in
// order of first appearance. These are runs that were interrupted.
func (l *Ledger) GetUnfinishedTasks() []string {
	finished := l.GetFinishedEvents()
	var pending []string
	for _, id := range l.TaskIDs() {
		if _, ok := finished[id]; !ok {
			pending = append(pending, id)
		}
	}
	return pending
}
