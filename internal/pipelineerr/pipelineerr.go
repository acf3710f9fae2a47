// Package pipelineerr defines the fatal error kinds every pipeline stage
// can raise, each wrapping github.com/pkg/errors' stack-trace-carrying
// errors so a failure surfaces with the call chain that produced it, not
// just a flat message.
package pipelineerr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind tags which pipeline stage rejected the input and why, so the
// front-end adapters (the CLI, the HTTP server) can report a stable error
// code alongside the human-readable message.
type Kind string

const (
	// KindBytecodeParse means the lifter could not make sense of the input
	// chunk: bad header, truncated stream, or an opcode outside the
	// supported instruction set.
	KindBytecodeParse Kind = "BytecodeParse"
	// KindMalformedCFG means SSA construction found a CFG that does not
	// satisfy its invariants: missing entry, or a read with no reaching
	// definition.
	KindMalformedCFG Kind = "MalformedCFG"
	// KindInlineConflict names the inliner's unsafe-candidate case. The
	// inliner (ssa.Inline) leaves such a candidate in place and returns no
	// error, so no stage currently raises this kind.
	KindInlineConflict Kind = "InlineConflict"
	// KindStructuringIncomplete means jump/conditional structuring reached
	// its fixed point with residual goto/label statements: the input's
	// control flow is irreducible.
	KindStructuringIncomplete Kind = "StructuringIncomplete"
	// KindNameCollisionExhausted means the naming pass could not find a
	// free name for a local. The pass's per-name numeric suffix counter is
	// unbounded, so no stage currently raises this kind.
	KindNameCollisionExhausted Kind = "NameCollisionExhausted"
)

// Error is a fatal pipeline failure tagged with the Kind that produced it.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// New builds a Kind-tagged error with a stack trace captured at the call
// site.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: pkgerrors.New(string(kind))}
}

// Wrap attaches a Kind to an underlying error, preserving its stack trace if
// it has one.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: pkgerrors.Wrap(err, string(kind))}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether err is a pipelineerr.Error of the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Kind == kind
}
