package signaling

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrTargetUnreachable = errors.New("target unreachable")
	ErrMalformedMessage  = errors.New("malformed message")
	ErrInternalFault     = errors.New("internal fault")
	ErrSlowConsumer      = errors.New("slow consumer")
	ErrRateLimited       = errors.New("rate limit exceeded")
)

// Error attaches the failing operation to one of the sentinel errors above.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

func malformed(op, details string) *Error {
	return WrapError(op, ErrMalformedMessage, details)
}
