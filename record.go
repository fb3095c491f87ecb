package consolefwd

import (
	"encoding/json"
	"time"
)

// LogEntry is one intercepted console call
type LogEntry struct {
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	Args      []any  `json:"args"`
	Timestamp int64  `json:"timestamp"` // Epoch milliseconds at capture
	Source    string `json:"source,omitempty"`
	Stack     string `json:"stack,omitempty"` // Error level only
}

// LogBatch is the ordered group of entries drained by one flush
type LogBatch struct {
	Logs      []LogEntry `json:"logs"`
	Timestamp int64      `json:"timestamp"`
}

// sinkRequest is the JSON body posted to the sink.
// Logs is carried as received so entries reach the sink unaltered.
type sinkRequest struct {
	Logs      json.RawMessage `json:"logs"`
	Timestamp int64           `json:"timestamp"`
	Source    string          `json:"source"`
}

// nowMillis returns the current instant as epoch milliseconds
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
