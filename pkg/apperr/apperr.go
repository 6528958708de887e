// Package apperr defines the error taxonomy shared by the content
// resolvers, the session store, and the context assembler. Errors carry a
// kind, a human-readable message, and the offending identifier so that
// callers (CLI, API layers) can render structured failures instead of
// bare traces.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Match with errors.Is.
var (
	// ErrNotFound covers unknown content paths, session ids, and capture ids.
	ErrNotFound = errors.New("not found")
	// ErrMetadata covers malformed YAML front matter.
	ErrMetadata = errors.New("malformed metadata")
	// ErrValidation covers malformed path segments, path-traversal attempts,
	// and context-assembly requests that cannot fit their budget.
	ErrValidation = errors.New("validation failed")
	// ErrGeneration is an opaque pass-through from the generation capability.
	ErrGeneration = errors.New("generation failed")
)

// Error is a structured error with a kind, an operation, and the
// identifier the operation failed on.
type Error struct {
	kind   error
	Op     string // operation that failed, e.g. "skills.get"
	Ref    string // offending identifier: content path, session id, filename
	Msg    string
	Detail string // optional payload, e.g. the raw front-matter block
	Err    error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.kind.Error()
	}
	s := fmt.Sprintf("%s: %s", e.Op, msg)
	if e.Ref != "" {
		s = fmt.Sprintf("%s (%s)", s, e.Ref)
	}
	if e.Err != nil {
		s = fmt.Sprintf("%s: %v", s, e.Err)
	}
	return s
}

// Unwrap exposes the underlying cause to errors.Is/As chains.
func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.kind
}

// Is matches the error's kind sentinel even when a cause is wrapped.
func (e *Error) Is(target error) bool {
	return target == e.kind
}

// NotFound reports an unknown identifier.
func NotFound(op, ref, format string, args ...any) *Error {
	return &Error{kind: ErrNotFound, Op: op, Ref: ref, Msg: fmt.Sprintf(format, args...)}
}

// Metadata reports malformed front matter. raw is the offending block,
// preserved verbatim for diagnostics.
func Metadata(op, ref, raw string, cause error) *Error {
	return &Error{kind: ErrMetadata, Op: op, Ref: ref, Msg: "invalid front matter", Detail: raw, Err: cause}
}

// Validation reports a malformed input.
func Validation(op, ref, format string, args ...any) *Error {
	return &Error{kind: ErrValidation, Op: op, Ref: ref, Msg: fmt.Sprintf(format, args...)}
}

// Generation wraps a failure from the generation capability without
// interpreting it.
func Generation(op string, cause error) *Error {
	return &Error{kind: ErrGeneration, Op: op, Err: cause}
}

// Wrap attaches an operation and ref to an arbitrary cause while keeping
// its kind if it already is an *Error.
func Wrap(err error, op, ref string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return &Error{kind: ae.kind, Op: op, Ref: ref, Msg: ae.Msg, Detail: ae.Detail, Err: err}
	}
	return fmt.Errorf("%s (%s): %w", op, ref, err)
}

// IsNotFound reports whether err is of the not-found kind.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is of the validation kind.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsMetadata reports whether err is of the metadata kind.
func IsMetadata(err error) bool { return errors.Is(err, ErrMetadata) }
