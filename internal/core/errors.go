package core

import (
	"errors"

	"github.com/jiye888/chat/internal/store"
)

// ErrorKind is the closed set of failure categories the core exposes.
type ErrorKind int

const (
	// KindNotFound means a room or message is absent.
	KindNotFound ErrorKind = iota
	// KindForbidden means the caller is not a current room member or
	// lacks the visibility window for a message.
	KindForbidden
	// KindConflict means a precondition blocks the request, such as the
	// sole admin leaving while other members remain.
	KindConflict
	// KindInvalidInput means the request itself is malformed.
	KindInvalidInput
	// KindInternal means the storage layer failed.
	KindInternal
)

// Code returns the stable wire code for the kind.
func (k ErrorKind) Code() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "internal"
	}
}

// Error carries a kind and a human-readable message.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NotFound builds a KindNotFound error.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Forbidden builds a KindForbidden error.
func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

// Conflict builds a KindConflict error.
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// InvalidInput builds a KindInvalidInput error.
func InvalidInput(msg string) *Error { return &Error{Kind: KindInvalidInput, Message: msg} }

// Internal builds a KindInternal error.
func Internal(msg string) *Error { return &Error{Kind: KindInternal, Message: msg} }

// WrapError converts an arbitrary error into a core *Error, mapping the
// store sentinels onto the taxonomy. Already-typed errors pass through.
func WrapError(err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return NotFound(err.Error())
	case errors.Is(err, store.ErrNotMember):
		return Forbidden("not a room member")
	default:
		return Internal(err.Error())
	}
}
