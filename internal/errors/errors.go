// Package errors defines the error kinds the loader and interpreter raise,
// and the diagnostic formatting the protected call boundary surfaces to the
// host. It mirrors the typed-error convention used elsewhere in this
// package family, adapted from source locations to bytecode locations
// (prototype name, program counter, opcode name).
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind identifies the category of failure, matching §7 of the spec.
type Kind string

const (
	// LoadError: truncated input, unsupported version, malformed constant
	// tag, varint overflow. Fatal — no interpreter state exists yet.
	LoadError Kind = "LoadError"
	// TypeError: arithmetic or indexing on an incompatible value, invalid
	// numeric-for coercion, iteration over a non-iterable.
	TypeError Kind = "TypeError"
	// RuntimeError: any host-function failure (namecall handler,
	// extension, vector constructor, ...).
	RuntimeError Kind = "RuntimeError"
	// Unsupported: an unknown opcode byte was encountered.
	Unsupported Kind = "Unsupported"
)

// Location pins a failure to a place in a prototype's code stream.
type Location struct {
	DebugName string
	PC        int
	OpName    string
}

// VMError is the error type every failure inside the loader or the
// dispatch loop is expressed as. The underlying cause (a short read, a Go
// type assertion, a host callback's own error) is preserved via
// github.com/pkg/errors so a host that wants to inspect it can call
// Cause(err) instead of parsing the formatted string.
type VMError struct {
	Kind     Kind
	Message  string
	Location Location
	cause    error
}

func (e *VMError) Error() string {
	if e.Location.DebugName == "" && e.Location.OpName == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	// "<engine>>lvm error [name>%s>opcode %s]>%s" per §7/§4.8.
	return fmt.Sprintf("lunar>lvm error [name>%s>opcode %s]>%s",
		e.Location.DebugName, e.Location.OpName, e.Message)
}

// Unwrap lets errors.Is/errors.As (and pkgerrors.Cause) see through to the
// original failure, if one was attached with Wrap.
func (e *VMError) Unwrap() error { return e.cause }

// Cause returns the deepest non-wrapped error, or e itself if none was
// attached.
func Cause(err error) error { return pkgerrors.Cause(err) }

func newError(kind Kind, format string, args ...interface{}) *VMError {
	return &VMError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewLoadError builds a LoadError with no bytecode location (none exists
// yet — the module hasn't finished decoding).
func NewLoadError(format string, args ...interface{}) *VMError {
	return newError(LoadError, format, args...)
}

// WrapLoadError attaches cause to a new LoadError built from format/args.
func WrapLoadError(cause error, format string, args ...interface{}) *VMError {
	e := newError(LoadError, format, args...)
	e.cause = pkgerrors.Wrap(cause, e.Message)
	return e
}

// NewTypeError builds a TypeError at the given bytecode location.
func NewTypeError(loc Location, format string, args ...interface{}) *VMError {
	e := newError(TypeError, format, args...)
	e.Location = loc
	return e
}

// NewRuntimeError builds a RuntimeError at the given bytecode location,
// wrapping cause if non-nil.
func NewRuntimeError(loc Location, cause error, format string, args ...interface{}) *VMError {
	e := newError(RuntimeError, format, args...)
	e.Location = loc
	if cause != nil {
		e.cause = pkgerrors.Wrap(cause, e.Message)
	}
	return e
}

// NewUnsupported builds an Unsupported diagnostic for an unknown opcode
// byte. Per §9, this is reported but does not abort the dispatch loop.
func NewUnsupported(loc Location, opByte uint8) *VMError {
	return &VMError{
		Kind:     Unsupported,
		Message:  fmt.Sprintf("unknown opcode byte %d", opByte),
		Location: loc,
	}
}
