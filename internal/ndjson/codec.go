// Package ndjson reads and writes newline-delimited JSON, one message per line.
package ndjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/iambrandonn/actuator/internal/protocol"
)

// MaxMessageSize is the maximum NDJSON message size (4 MiB)
const MaxMessageSize = 4 * 1024 * 1024

const initialBufferSize = 64 * 1024

// Encoder writes NDJSON messages to an output stream
type Encoder struct {
	writer *bufio.Writer
	logger *slog.Logger
}

// NewEncoder creates a new NDJSON encoder
func NewEncoder(w io.Writer, logger *slog.Logger) *Encoder {
	return &Encoder{
		writer: bufio.NewWriter(w),
		logger: orDiscard(logger),
	}
}

// Encode writes a message as a single JSON line and flushes it
func (e *Encoder) Encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if len(data) > MaxMessageSize {
		e.logger.Error("message exceeds size limit",
			"size", len(data),
			"limit", MaxMessageSize,
			"overflow", len(data)-MaxMessageSize)
		return fmt.Errorf("message size %d exceeds limit %d", len(data), MaxMessageSize)
	}

	if _, err := e.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := e.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	// Readers tail the log while a task runs
	if err := e.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

// Decoder reads NDJSON messages from an input stream
type Decoder struct {
	scanner *bufio.Scanner
	logger  *slog.Logger
	lineNum int
}

// NewDecoder creates a new NDJSON decoder
func NewDecoder(r io.Reader, logger *slog.Logger) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialBufferSize), MaxMessageSize)

	return &Decoder{
		scanner: scanner,
		logger:  orDiscard(logger),
	}
}

// Line returns the number of the line most recently read
func (d *Decoder) Line() int {
	return d.lineNum
}

// Decode reads the next non-empty line into v. It returns io.EOF at the end
// of the stream.
func (d *Decoder) Decode(v any) error {
	data, err := d.next()
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		d.logger.Error("failed to unmarshal JSON",
			"line", d.lineNum,
			"error", err,
			"data", string(data[:min(100, len(data))]))
		return fmt.Errorf("failed to unmarshal line %d: %w", d.lineNum, err)
	}
	return nil
}

func (d *Decoder) next() ([]byte, error) {
	for d.scanner.Scan() {
		d.lineNum++
		if data := d.scanner.Bytes(); len(data) > 0 {
			return data, nil
		}
	}
	if err := d.scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error at line %d: %w", d.lineNum+1, err)
	}
	return nil, io.EOF
}

// DecodeEnvelope reads the next message and returns it as a
// *protocol.TaskEvent or *protocol.AuditRecord according to its kind
func (d *Decoder) DecodeEnvelope() (any, error) {
	data, err := d.next()
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Kind protocol.MessageKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal line %d: %w", d.lineNum, err)
	}

	switch envelope.Kind {
	case protocol.MessageKindEvent:
		var evt protocol.TaskEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, fmt.Errorf("line %d: failed to decode event: %w", d.lineNum, err)
		}
		return &evt, nil

	case protocol.MessageKindAudit:
		var rec protocol.AuditRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("line %d: failed to decode audit record: %w", d.lineNum, err)
		}
		return &rec, nil

	case "":
		return nil, fmt.Errorf("line %d: missing or invalid 'kind' field", d.lineNum)

	default:
		d.logger.Warn("unknown message kind", "line", d.lineNum, "kind", envelope.Kind)
		return nil, fmt.Errorf("line %d: unknown message kind: %s", d.lineNum, envelope.Kind)
	}
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}
