package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// LogEmitter implements Emitter by writing structured log output to a writer.
//
// Supports two output modes:
//   - Text mode (default): human-readable key=value pairs
//   - JSON mode: one JSON object per line (JSONL)
//
// Example text output:
//
//	[status_update] workflow=wf-a1b2c3d4e5f6 status=running
//
// Example JSON output:
//
//	{"type":"status_update","workflow_id":"wf-a1b2c3d4e5f6","msg":"","meta":{"status":"running"}}
//
// Usage:
//
//	// Text output to stdout
//	emitter := emit.NewLogEmitter(os.Stdout, false)
//
//	// JSON output to file
//	f, _ := os.Create("events.jsonl")
//	defer f.Close()
//	emitter := emit.NewLogEmitter(f, true)
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a new LogEmitter writing to writer. A nil writer
// defaults to os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{
		writer:   writer,
		jsonMode: jsonMode,
	}
}

// Emit writes the event in the configured format.
func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		Type       string                 `json:"type"`
		WorkflowID string                 `json:"workflow_id"`
		Msg        string                 `json:"msg,omitempty"`
		Timestamp  time.Time              `json:"timestamp"`
		Meta       map[string]interface{} `json:"meta,omitempty"`
	}{
		Type:       event.Type,
		WorkflowID: event.WorkflowID,
		Msg:        event.Msg,
		Timestamp:  event.Timestamp,
		Meta:       event.Meta,
	})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	fmt.Fprintf(l.writer, "[%s] workflow=%s", event.Type, event.WorkflowID)
	if event.Msg != "" {
		fmt.Fprintf(l.writer, " msg=%q", event.Msg)
	}
	if len(event.Meta) > 0 {
		metaJSON, err := json.Marshal(event.Meta)
		if err == nil {
			fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}
	fmt.Fprint(l.writer, "\n")
}
