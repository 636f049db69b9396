package main

import (
	"strings"
	"sync"
)

// LogLine is one captured log record
type LogLine struct {
	Seq  int    `json:"seq"`
	Text string `json:"text"`
}

// LogBuffer keeps the most recent log lines. It is used as an extra slog
// writer, so each Write is one formatted record.
type LogBuffer struct {
	mu    sync.Mutex
	lines []LogLine
	limit int
	next  int
}

// NewLogBuffer keeps at most limit lines
func NewLogBuffer(limit int) *LogBuffer {
	if limit <= 0 {
		limit = 500
	}
	return &LogBuffer{limit: limit}
}

// Write implements io.Writer
func (b *LogBuffer) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, line := range strings.Split(text, "\n") {
		b.lines = append(b.lines, LogLine{Seq: b.next, Text: line})
		b.next++
	}
	if over := len(b.lines) - b.limit; over > 0 {
		b.lines = append([]LogLine(nil), b.lines[over:]...)
	}
	return len(p), nil
}

// Since returns the kept lines with Seq >= since and the seq to ask for next
func (b *LogBuffer) Since(since int) ([]LogLine, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []LogLine{}
	for _, line := range b.lines {
		if line.Seq >= since {
			out = append(out, line)
		}
	}
	return out, b.next
}
