package scene

import (
	"io"
	"log"
)

// logStreams are a Scene's ops/diag/trace loggers. Each Scene owns its own
// set so two scenes in one process can log to different places.
type logStreams struct {
	ops   *log.Logger
	diag  *log.Logger
	trace *log.Logger
}

func newLogStreams(ops, diag, trace io.Writer) logStreams {
	return logStreams{
		ops:   newLogger("[scene] ", ops),
		diag:  newLogger("[scene] ", diag),
		trace: newLogger("[scene] ", trace),
	}
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs actionable warnings: redirects, missing annotations, skipped files.
func (l logStreams) opsf(format string, args ...interface{}) {
	if l.ops != nil {
		l.ops.Printf(format, args...)
	}
}

// diagf logs stage progress.
func (l logStreams) diagf(format string, args ...interface{}) {
	if l.diag != nil {
		l.diag.Printf(format, args...)
	}
}

// tracef logs per-file detail.
func (l logStreams) tracef(format string, args ...interface{}) {
	if l.trace != nil {
		l.trace.Printf(format, args...)
	}
}
