// Package varserver provides access to the variable directory service.
//
// The daemon binds GPIO lines to named variables held by an external variable
// server. This package defines the client interface the binder and engine
// depend on, and an MQTT-backed production implementation. Tests use an
// in-memory fake.
//
// Handles are opaque server-assigned identifiers; handle 0 is never valid.
// Variables bound to GPIO lines carry 16-bit unsigned values.
package varserver

import (
	"context"
	"errors"
	"io"
)

// Handle identifies a variable within the directory. Zero is invalid.
type Handle uint32

// Valid reports whether the handle refers to a variable.
func (h Handle) Valid() bool { return h != 0 }

// NotifyKind selects which variable events the server delivers as signals.
type NotifyKind int

const (
	// NotifyModified requests a signal whenever the variable is written.
	NotifyModified NotifyKind = iota
	// NotifyQuery requests a signal whenever the variable's value is read.
	NotifyQuery
	// NotifyPrint requests a signal whenever the variable is printed.
	NotifyPrint
)

// String returns the protocol name of the notification kind.
func (k NotifyKind) String() string {
	switch k {
	case NotifyModified:
		return "modified"
	case NotifyQuery:
		return "query"
	case NotifyPrint:
		return "print"
	default:
		return "unknown"
	}
}

// SignalKind identifies the kind of an incoming signal.
type SignalKind int

const (
	// SignalUnknown is a signal kind this client does not understand.
	SignalUnknown SignalKind = iota
	// SignalModified reports a variable write.
	SignalModified
	// SignalQuery reports a variable read in progress.
	SignalQuery
	// SignalPrint reports a print request carrying a session token.
	SignalPrint
)

// Signal is one event delivered by the variable server.
type Signal struct {
	Kind SignalKind

	// Handle identifies the variable for modified and query signals.
	Handle Handle

	// Session is the print-session token for print signals.
	Session string
}

// Client is the variable-directory operations the daemon uses.
//
// All blocking operations honour context cancellation. Implementations must
// be safe for concurrent use.
type Client interface {
	// FindByName resolves a variable name to its handle.
	// Returns ErrNotFound when the directory has no such variable.
	FindByName(ctx context.Context, name string) (Handle, error)

	// Get reads the variable's value. Returns ErrWrongType when the
	// variable is not a 16-bit unsigned integer.
	Get(ctx context.Context, h Handle) (uint16, error)

	// Set writes the variable's value.
	Set(ctx context.Context, h Handle, value uint16) error

	// Notify registers interest in a variable event kind. Signals for
	// registered events arrive via NextSignal.
	Notify(ctx context.Context, h Handle, kind NotifyKind) error

	// NextSignal blocks until a signal arrives or the context is
	// cancelled.
	NextSignal(ctx context.Context) (Signal, error)

	// OpenPrintSession opens the output sink for a print signal's session
	// token. The caller must close it to end the session.
	OpenPrintSession(token string) io.WriteCloser
}

// Sentinel errors for variable-directory operations.
var (
	// ErrNotFound indicates the directory has no variable with that name.
	ErrNotFound = errors.New("varserver: variable not found")

	// ErrWrongType indicates the variable is not a 16-bit unsigned integer.
	ErrWrongType = errors.New("varserver: variable has wrong type")

	// ErrInvalidHandle indicates an operation on handle zero.
	ErrInvalidHandle = errors.New("varserver: invalid handle")

	// ErrRequestTimeout indicates no reply arrived within the request timeout.
	ErrRequestTimeout = errors.New("varserver: request timeout")

	// ErrServerFailure indicates the server rejected the request.
	ErrServerFailure = errors.New("varserver: server failure")
)
