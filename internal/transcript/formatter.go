// Package transcript renders task events, audit records and tool reports as
// single console lines.
package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/iambrandonn/actuator/internal/protocol"
	"github.com/iambrandonn/actuator/internal/tool"
)

// Formatter formats protocol messages for console output
type Formatter struct{}

// NewFormatter creates a new transcript formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// FormatEvent formats a task event for console display
func (f *Formatter) FormatEvent(evt *protocol.TaskEvent) string {
	var details string

	switch evt.Event {
	case protocol.EventTaskStarted:
		details = fmt.Sprintf("%q", evt.Request)
		if evt.Intent != nil && evt.Intent.Kind != "" {
			details += fmt.Sprintf(" (intent: %s)", evt.Intent.Kind)
		}

	case protocol.EventTaskStateChanged:
		if evt.Previous != "" {
			details = fmt.Sprintf("%s→%s", evt.Previous, evt.State)
		} else {
			details = string(evt.State)
		}
		if evt.Message != "" {
			details += ": " + evt.Message
		}

	case protocol.EventTaskStreamChunk:
		details = fmt.Sprintf("%s (%s)", evt.MessageID, f.formatSize(int64(len(evt.Chunk))))

	case protocol.EventTaskProposal:
		if evt.Proposal != nil {
			details = f.formatProposal(evt.Proposal)
		}

	case protocol.EventTaskFinished:
		details = string(evt.Status)
		if evt.Message != "" {
			details += fmt.Sprintf(" (%s)", evt.Message)
		}

	default:
		if evt.Status != "" {
			details = fmt.Sprintf("status: %s", evt.Status)
		}
	}

	if details != "" {
		return fmt.Sprintf("[%s] %s: %s", evt.TaskID, evt.Event, details)
	}
	return fmt.Sprintf("[%s] %s", evt.TaskID, evt.Event)
}

func (f *Formatter) formatProposal(p *protocol.Proposal) string {
	var parts []string
	if strings.TrimSpace(p.Diff) != "" {
		parts = append(parts, "diff")
	}
	if n := len(p.Commands); n > 0 {
		parts = append(parts, fmt.Sprintf("%d command(s)", n))
	}
	if p.RequiresApproval {
		parts = append(parts, "approval required")
	}

	out := p.ID
	if p.Summary != "" {
		out += " " + p.Summary
	}
	if len(parts) > 0 {
		out += fmt.Sprintf(" [%s]", strings.Join(parts, ", "))
	}
	return out
}

// FormatAudit formats an audit record for console display
func (f *Formatter) FormatAudit(rec *protocol.AuditRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[audit:%s]", rec.Phase)
	if rec.ToolID != "" {
		fmt.Fprintf(&b, " %s:", rec.ToolID)
	}
	fmt.Fprintf(&b, " %s (attempt %d", rec.CommandText, rec.Attempt)
	switch {
	case rec.TimedOut:
		b.WriteString(", timed out")
	case rec.Cancelled:
		b.WriteString(", cancelled")
	case rec.ExitCode != nil:
		fmt.Fprintf(&b, ", exit %d", *rec.ExitCode)
	}
	b.WriteString(")")
	for _, d := range rec.Diagnostics {
		fmt.Fprintf(&b, " %s", d.Code)
	}
	return b.String()
}

// FormatReport formats a command report as a status line followed by one
// line per diagnostic
func (f *Formatter) FormatReport(command string, r tool.Report) string {
	var b strings.Builder

	status := "ok"
	switch {
	case r.TimedOut:
		status = "timed out"
	case r.Cancelled:
		status = "cancelled"
	case r.ExitCode == nil:
		status = "did not run"
	case *r.ExitCode != 0:
		status = fmt.Sprintf("exit %d", *r.ExitCode)
	}

	toolID := r.ToolID
	if toolID == "" {
		toolID = "none"
	}
	fmt.Fprintf(&b, "$ %s [%s] %s", command, toolID, status)
	if r.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", r.Attempts)
	}
	if r.Duration > 0 {
		fmt.Fprintf(&b, " in %s", r.Duration.Round(time.Millisecond))
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(&b, "\n  %s: %s", d.Code, d.Message)
	}
	return b.String()
}

// formatSize formats a byte size in a human-readable format
func (f *Formatter) formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GiB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
