// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

const (
	recentCapacity  = 500
	maxLineBytes    = 16 * 1024
	maxPartialBytes = 64 * 1024
)

// LogEntry is a decoded log line kept in the in-memory recent buffer.
type LogEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// BufferMetrics reports how many lines the recent buffer refused.
type BufferMetrics struct {
	DroppedPartialOverflow uint64
	DroppedTooLargeLines   uint64
	DroppedUnparseable     uint64
	DroppedIrrelevant      uint64
}

var (
	recentMu   sync.Mutex
	recent     = make([]LogEntry, 0, recentCapacity)
	recentNext int
	// recentTotal counts every entry ever appended; it is the stream cursor.
	recentTotal uint64

	droppedPartialOverflow atomic.Uint64
	droppedTooLarge        atomic.Uint64
	droppedUnparseable     atomic.Uint64
	droppedIrrelevant      atomic.Uint64
)

// structuredBufferWriter decodes JSON log lines and keeps the relevant ones
// in a fixed-size ring. Writes may split lines arbitrarily.
type structuredBufferWriter struct {
	mu      sync.Mutex
	partial bytes.Buffer
}

func (w *structuredBufferWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(p)
	for len(p) > 0 {
		idx := bytes.IndexByte(p, '\n')
		if idx < 0 {
			if w.partial.Len()+len(p) > maxPartialBytes {
				w.partial.Reset()
				droppedPartialOverflow.Add(1)
				return n, nil
			}
			w.partial.Write(p)
			return n, nil
		}
		w.partial.Write(p[:idx])
		w.consume(w.partial.Bytes())
		w.partial.Reset()
		p = p[idx+1:]
	}
	return n, nil
}

func (w *structuredBufferWriter) consume(line []byte) {
	if len(line) == 0 {
		return
	}
	if len(line) > maxLineBytes {
		droppedTooLarge.Add(1)
		return
	}
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		droppedUnparseable.Add(1)
		return
	}
	level, _ := raw["level"].(string)
	if !relevant(level) {
		droppedIrrelevant.Add(1)
		return
	}

	entry := LogEntry{Level: level}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
	}
	if ts, ok := raw["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			entry.Time = parsed
		}
	}
	delete(raw, "level")
	delete(raw, "message")
	delete(raw, "time")
	if len(raw) > 0 {
		entry.Fields = raw
	}
	appendRecent(entry)
}

// Debug and trace output (ffmpeg stderr chatter among it) stays out of the ring.
func relevant(level string) bool {
	switch level {
	case "debug", "trace", "":
		return false
	default:
		return true
	}
}

func appendRecent(e LogEntry) {
	recentMu.Lock()
	defer recentMu.Unlock()
	recentTotal++
	if len(recent) < recentCapacity {
		recent = append(recent, e)
		return
	}
	recent[recentNext] = e
	recentNext = (recentNext + 1) % recentCapacity
}

// GetRecentLogs returns the buffered entries, oldest first.
func GetRecentLogs() []LogEntry {
	recentMu.Lock()
	defer recentMu.Unlock()
	out := make([]LogEntry, 0, len(recent))
	if len(recent) < recentCapacity {
		return append(out, recent...)
	}
	out = append(out, recent[recentNext:]...)
	return append(out, recent[:recentNext]...)
}

// RecentLogsSince returns the entries appended after cursor, oldest first,
// and the cursor to pass next time. Entries already evicted from the ring are
// skipped.
func RecentLogsSince(cursor uint64) ([]LogEntry, uint64) {
	recentMu.Lock()
	defer recentMu.Unlock()
	oldest := recentTotal - uint64(len(recent))
	if cursor < oldest {
		cursor = oldest
	}
	if cursor >= recentTotal {
		return nil, recentTotal
	}
	skip := int(cursor - oldest) // #nosec G115 -- bounded by recentCapacity
	out := make([]LogEntry, 0, len(recent)-skip)
	for i := skip; i < len(recent); i++ {
		idx := i
		if len(recent) == recentCapacity {
			idx = (recentNext + i) % recentCapacity
		}
		out = append(out, recent[idx])
	}
	return out, recentTotal
}

// ClearRecentLogs empties the ring and its drop counters.
func ClearRecentLogs() {
	recentMu.Lock()
	recent = recent[:0]
	recentNext = 0
	recentMu.Unlock()
	droppedPartialOverflow.Store(0)
	droppedTooLarge.Store(0)
	droppedUnparseable.Store(0)
	droppedIrrelevant.Store(0)
}

// GetBufferMetrics returns the drop counters of the recent buffer.
func GetBufferMetrics() BufferMetrics {
	return BufferMetrics{
		DroppedPartialOverflow: droppedPartialOverflow.Load(),
		DroppedTooLargeLines:   droppedTooLarge.Load(),
		DroppedUnparseable:     droppedUnparseable.Load(),
		DroppedIrrelevant:      droppedIrrelevant.Load(),
	}
}
