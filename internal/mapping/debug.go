package mapping

import (
	"io"
	"log"
	"time"

	"golang.org/x/time/rate"
)

var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger

	// traceSometimes thins per-tick telemetry to a readable rate.
	traceSometimes = &rate.Sometimes{First: 5, Interval: 2 * time.Second}
)

// SetLogWriters configures the three logging streams for the mapping package.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger("[mapping] ", ops)
	diagLogger = newLogger("[mapping] ", diag)
	traceLogger = newLogger("[mapping] ", trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream (lifecycle, dropped robots).
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream (robot joins, maintenance summaries).
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef logs per-tick fusion telemetry, throttled.
func tracef(format string, args ...interface{}) {
	if traceLogger == nil {
		return
	}
	traceSometimes.Do(func() {
		traceLogger.Printf(format, args...)
	})
}
