package queue

import "errors"

// Queue errors.
var (
	ErrInvalidAction  = errors.New("invalid action")
	ErrNotFound       = errors.New("action not found")
	ErrAlreadyStarted = errors.New("queue worker already started")
	ErrNoExecutor     = errors.New("no executor for action type")
	ErrInterrupted    = errors.New("action interrupted by shutdown")
)
