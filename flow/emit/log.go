package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogEmitter implements Emitter by writing structured log output to a
// writer.
//
// Supports two output modes:
//   - Text mode (default): human-readable format with key=value pairs.
//   - JSON mode: machine-readable JSONL, one event per line.
//
// Example text output:
//
//	[primitive_start] runID=run-001 step=1 node=classify
//
// Example JSON output:
//
//	{"runID":"run-001","step":1,"node":"classify","msg":"primitive_start","meta":null}
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter writing to writer (os.Stdout when nil).
// Set jsonMode for JSONL output.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes an event to the configured writer.
func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

// emitJSON writes the event as one JSONL line. Callers hold the lock.
func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		RunID string                 `json:"runID"`
		Step  int                    `json:"step"`
		Node  string                 `json:"node"`
		Msg   string                 `json:"msg"`
		Meta  map[string]interface{} `json:"meta"`
	}{event.RunID, event.Step, event.Node, event.Msg, event.Meta})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

// emitText writes the event as human-readable text. Callers hold the lock.
func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] runID=%s step=%d node=%s",
		event.Msg, event.RunID, event.Step, event.Node)
	if len(event.Meta) > 0 {
		if metaJSON, err := json.Marshal(event.Meta); err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			_, _ = fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}
	_, _ = fmt.Fprint(l.writer, "\n")
}

// EmitBatch writes all events in order.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, event := range events {
		if l.jsonMode {
			l.emitJSON(event)
		} else {
			l.emitText(event)
		}
	}
	return nil
}

// Flush is a no-op: writes go directly to the underlying io.Writer, which
// handles its own buffering.
func (l *LogEmitter) Flush(_ context.Context) error {
	return nil
}
