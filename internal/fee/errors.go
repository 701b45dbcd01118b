package fee

import (
	"errors"
	"strings"
)

// UnknownError is the message reported when a failure carries no text.
const UnknownError = "Unknown error"

// ErrNoAccount is returned when no account is selected. It is a caller
// precondition failure, not an estimation failure.
var ErrNoAccount = errors.New("no account selected")

// EstimationError wraps any downstream failure while computing a fee.
type EstimationError struct {
	Path string // "deploy" or "invoke"
	Err  error
}

// Error returns the downstream message unchanged so it can be shown to the user.
func (e *EstimationError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *EstimationError) Unwrap() error {
	return e.Err
}

// ErrorMessage is the single formatting point for errors shown to users.
// It returns the error text, or UnknownError when there is none.
func ErrorMessage(err error) string {
	if err == nil {
		return UnknownError
	}
	msg := err.Error()
	if strings.TrimSpace(msg) == "" {
		return UnknownError
	}
	return msg
}
