// Package binding builds the runtime registry of GPIO lines from a parsed
// mapping document.
//
// The Binder walks the document chip by chip, line by line, resolving each
// line's variable, parsing its electrical attributes, and acquiring the
// hardware line when the line's role matches the process mode: edge-monitored
// lines belong to watch mode, everything else to signal mode. Two cooperating
// process instances can split one document between them this way without
// double-claiming a line.
//
// Binding is best-effort. Every failure is local to one line; a malformed
// line is skipped and reported while its siblings bind normally. The Report
// returned alongside the Registry records the outcome of every line in the
// document.
//
// After binding completes the Registry is structurally read-only. The only
// mutable state is each line's value counter, written by the engine and read
// atomically by the line's own PWM driver. Lookups never touch the counter,
// so they are safe without locks.
package binding
