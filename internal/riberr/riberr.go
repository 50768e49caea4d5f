// Package riberr defines the error kinds shared by the object, community,
// nexthop, and rib packages. The core never logs directly (callers do);
// it only ever returns one of these kinds, wrapped around the underlying
// cause.
package riberr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds the attribute/RIB core can produce.
type Kind int

const (
	// MalformedInput covers a bad prefix, bad address, bad token, or a
	// misaligned attribute length.
	MalformedInput Kind = iota
	// SemanticConflict covers a family mismatch or flags combined with a
	// gateway where the two are mutually exclusive.
	SemanticConflict
	// NotFound is raised internally for a delete with no match; callers
	// treat it as success rather than surfacing it.
	NotFound
	// IncompleteCommand covers a bare prefix given without flags.
	IncompleteCommand
	// InternalInvariant marks a broken invariant; it is never returned,
	// only passed to Invariant, which panics.
	InternalInvariant
)

// Error wraps an underlying cause with one of the Kind values above and
// the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (k Kind) String() string {
	switch k {
	case MalformedInput:
		return "malformed input"
	case SemanticConflict:
		return "semantic conflict"
	case NotFound:
		return "not found"
	case IncompleteCommand:
		return "incomplete command"
	case InternalInvariant:
		return "internal invariant violated"
	default:
		return "unknown"
	}
}

func Malformed(op string, err error) error { return &Error{Kind: MalformedInput, Op: op, Err: err} }

func Conflict(op string, err error) error { return &Error{Kind: SemanticConflict, Op: op, Err: err} }

func NotFoundf(op, format string, args ...any) error {
	return &Error{Kind: NotFound, Op: op, Err: fmt.Errorf(format, args...)}
}

func Incomplete(op string, err error) error {
	return &Error{Kind: IncompleteCommand, Op: op, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Invariant panics — the one error kind the core does not return, because
// it marks a broken invariant that the process cannot safely continue
// past (spec §7, InternalInvariant).
func Invariant(op string, err error) {
	panic(&Error{Kind: InternalInvariant, Op: op, Err: err})
}
