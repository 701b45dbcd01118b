package messaging

import (
	"errors"
	"fmt"
)

// Router errors.
var (
	ErrUnhandledMessage = errors.New("unhandled message")
	ErrMalformedMessage = errors.New("malformed message")
)

// UnhandledMessageError is returned for message types the router does not know.
type UnhandledMessageError struct {
	Type Type
}

func (e *UnhandledMessageError) Error() string {
	return fmt.Sprintf("unhandled message type %q", e.Type)
}

// Is makes errors.Is(err, ErrUnhandledMessage) match.
func (e *UnhandledMessageError) Is(target error) bool {
	return target == ErrUnhandledMessage
}
