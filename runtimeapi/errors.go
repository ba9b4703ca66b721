package runtimeapi

import "errors"

// Error is delivered to callers when the provider failed to answer. It
// carries only diagnostic text.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return "runtime API error: " + e.Msg
}

// newError captures a provider failure as data.
func newError(err error) *Error {
	return &Error{Msg: err.Error()}
}

// Subsystem errors
var (
	ErrAlreadyStarted = errors.New("runtime API subsystem already started")
	ErrNilProvider    = errors.New("runtime API subsystem requires a provider")
)
