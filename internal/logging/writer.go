package logging

import (
	"log/slog"
	"strings"
)

// Writer is an io.Writer implementation that forwards external tool output to slog.
type Writer struct {
	logger *slog.Logger
	msg    string
}

// NewWriter constructs a Writer bound to the provided logger. Every line is
// logged at debug level with msg as the message.
func NewWriter(logger *slog.Logger, msg string) *Writer {
	return &Writer{logger: logger, msg: msg}
}

// Write logs each non-empty line of p.
func (w *Writer) Write(p []byte) (int, error) {
	if w.logger != nil {
		for _, line := range strings.Split(string(p), "\n") {
			line = strings.TrimRight(line, "\r")
			if line != "" {
				w.logger.Debug(w.msg, "line", line)
			}
		}
	}
	return len(p), nil
}
