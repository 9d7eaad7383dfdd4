package cli

import (
	"strings"
	"sync"
)

// LogWriter implements io.Writer and captures log output for TUI display.
// It keeps the most recent lines and notifies via a channel.
type LogWriter struct {
	mu       sync.Mutex
	lines    []string
	maxLines int
	ch       chan string
}

// NewLogWriter creates a new log writer keeping at most maxLines lines.
func NewLogWriter(maxLines int) *LogWriter {
	if maxLines <= 0 {
		maxLines = 100
	}
	return &LogWriter{
		maxLines: maxLines,
		ch:       make(chan string, 100),
	}
}

// Write implements io.Writer. Multi-line input is split on newlines.
func (w *LogWriter) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	w.mu.Lock()
	for _, line := range strings.Split(text, "\n") {
		w.lines = append(w.lines, line)
		if len(w.lines) > w.maxLines {
			w.lines = w.lines[len(w.lines)-w.maxLines:]
		}
		select {
		case w.ch <- line:
		default:
		}
	}
	w.mu.Unlock()
	return len(p), nil
}

// Lines returns a copy of the buffered lines.
func (w *LogWriter) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.lines...)
}

// Channel returns the notification channel for new lines.
func (w *LogWriter) Channel() <-chan string {
	return w.ch
}
