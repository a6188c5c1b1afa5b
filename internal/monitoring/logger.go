package monitoring

import (
	"io"
	"log"
)

// Logf is the top-level diagnostic logger used by the command. It defaults to
// log.Printf but may be replaced by SetLogger. Tests can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Streams is the writer triple handed to the pipeline packages.
//
//   - Ops: actionable warnings, errors, redirects.
//   - Diag: stage progress and day-to-day diagnostics.
//   - Trace: per-file telemetry, only useful when debugging.
//
// A nil writer disables that stream.
type Streams struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

// NewStreams routes the enabled streams to w. Ops is always on; diag needs
// verbose or debug; trace needs debug.
func NewStreams(w io.Writer, verbose, debug bool) Streams {
	s := Streams{Ops: w}
	if verbose || debug {
		s.Diag = w
	}
	if debug {
		s.Trace = w
	}
	return s
}
