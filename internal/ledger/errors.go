package ledger

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed taxonomy every engine operation reports through.
// The transport layer turns kinds into user-visible wording; the engine only
// supplies the kind, a machine-readable code and any relevant current value.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindNotAuthorized      ErrorKind = "not_authorized"
	KindInvalidInput       ErrorKind = "invalid_input"
	KindInvariantViolation ErrorKind = "invariant_violation"
	KindAlreadyInState     ErrorKind = "already_in_state"
	KindConflict           ErrorKind = "conflict" // concurrent write lost the optimistic version check
)

// Error is the typed result all registry/engine/gate operations fail with.
type Error struct {
	Kind    ErrorKind
	Code    string // finer-grained detail within the kind, e.g. "insufficient_balance"
	Message string
	Current *int64 // current value relevant to the failure, when one exists
}

func (e *Error) Error() string {
	if e.Current != nil {
		return fmt.Sprintf("%s: %s (current=%d)", e.Kind, e.Message, *e.Current)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func newErrorWithCurrent(kind ErrorKind, code, message string, current int64) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Current: &current}
}

// AsError unwraps err into a *Error, or nil if err is not one.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e := AsError(err)
	return e != nil && e.Kind == kind
}
