// Package errs defines the typed error kinds the store and SPARQL
// engine surface to callers (spec §7). Each kind wraps a sentinel via
// errors.Is so callers can branch on failure class without string
// matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide whether to retry,
// surface to a user, or treat the store as unusable.
type Kind int

const (
	// KindSyntax covers bad SPARQL or N-Quads input.
	KindSyntax Kind = iota
	// KindStorage classifies WAL write failures and corrupt checkpoints.
	// The façade does not raise it: it returns such failures as plain
	// wrapped errors and the store stays open, with no read-only or
	// disposed state.
	KindStorage
	// KindConcurrency covers lock recursion and release-without-acquire.
	KindConcurrency
	// KindDisposed classifies operations attempted on a closed store.
	// The façade does not raise it: it keeps no closed flag, so a call
	// after Close fails with whatever error the closed WAL or index
	// returns.
	KindDisposed
	// KindTimeout covers lock or gate acquisition timeouts.
	KindTimeout
	// KindTypeMismatch covers filter comparisons between incompatible
	// value kinds; callers treat these as a dropped row, not a fatal error.
	KindTypeMismatch
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindStorage:
		return "storage"
	case KindConcurrency:
		return "concurrency"
	case KindDisposed:
		return "disposed"
	case KindTimeout:
		return "timeout"
	case KindTypeMismatch:
		return "type_mismatch"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by the store and SPARQL
// packages. Offset is the byte offset into the source text for syntax
// errors; it is -1 when not applicable.
type Error struct {
	Kind    Kind
	Offset  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s error at offset %d: %s", e.Kind, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is the sentinel for e's Kind, so callers
// can write errors.Is(err, errs.ErrDisposed) instead of type-asserting.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinelForKind[e.Kind]
	return ok && errors.Is(target, sentinel)
}

// Sentinels for errors.Is comparisons.
var (
	ErrSyntax       = errors.New("syntax error")
	ErrStorage      = errors.New("storage error")
	ErrConcurrency  = errors.New("concurrency error")
	ErrDisposed     = errors.New("store is disposed")
	ErrTimeout      = errors.New("operation timed out")
	ErrTypeMismatch = errors.New("type mismatch")
)

var sentinelForKind = map[Kind]error{
	KindSyntax:       ErrSyntax,
	KindStorage:      ErrStorage,
	KindConcurrency:  ErrConcurrency,
	KindDisposed:     ErrDisposed,
	KindTimeout:      ErrTimeout,
	KindTypeMismatch: ErrTypeMismatch,
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Offset: -1, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: -1, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Offset: -1, Message: message, Cause: cause}
}

// SyntaxAt builds a KindSyntax error carrying a byte offset into the
// source text being parsed.
func SyntaxAt(offset int, format string, args ...any) *Error {
	return &Error{Kind: KindSyntax, Offset: offset, Message: fmt.Sprintf(format, args...)}
}
