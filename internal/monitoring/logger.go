// Package monitoring holds the process-wide logger and the Prometheus
// metrics exported by the exploration service.
package monitoring

import (
	"io"
	"log"
	"strings"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// LogfWriter adapts Logf to an io.Writer so per-package log streams can be
// funnelled through the process logger. Each write is logged as one line
// with tag prepended.
func LogfWriter(tag string) io.Writer {
	return logfWriter{tag: tag}
}

type logfWriter struct {
	tag string
}

func (w logfWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	if w.tag != "" {
		Logf("%s %s", w.tag, line)
	} else {
		Logf("%s", line)
	}
	return len(p), nil
}
