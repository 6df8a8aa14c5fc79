package pathplan

import (
	"io"
	"log"
)

var traceLogger *log.Logger

// SetLogWriter configures the trace stream for path planning. Pass nil to
// disable it.
func SetLogWriter(trace io.Writer) {
	if trace == nil {
		traceLogger = nil
		return
	}
	traceLogger = log.New(trace, "[pathplan] ", log.LstdFlags|log.Lmicroseconds)
}

func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
