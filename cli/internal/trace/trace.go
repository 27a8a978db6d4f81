// Package trace provides a small Tracer for writing compressor decisions to
// stderr when --trace is set. No-op when the writer is nil.
package trace

import (
	"fmt"
	"io"
)

// Tracer writes sectioned trace output. When the underlying writer is nil, all methods no-op.
type Tracer struct {
	w io.Writer
}

// New returns a Tracer that writes to w. If w is nil, all methods no-op.
func New(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

// Enabled returns true if the tracer has a non-nil writer.
func (t *Tracer) Enabled() bool {
	return t != nil && t.w != nil
}

// Section writes a section header: "\n[tagtrim:trace] === name ===\n"
func (t *Tracer) Section(name string) {
	if !t.Enabled() {
		return
	}
	fmt.Fprintf(t.w, "\n[tagtrim:trace] === %s ===\n", name)
}

// Printf writes to the trace writer when enabled. Format and args are as in fmt.Printf.
func (t *Tracer) Printf(format string, args ...interface{}) {
	if !t.Enabled() {
		return
	}
	fmt.Fprintf(t.w, format, args...)
}

// Decision writes one line per compressor decision:
// "tok=3 strip \"  \\n\"" with the affected text quoted.
func (t *Tracer) Decision(tok int, action, text string) {
	if !t.Enabled() {
		return
	}
	fmt.Fprintf(t.w, "tok=%d %s %q\n", tok, action, text)
}
