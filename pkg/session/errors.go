package session

import "errors"

var (
	// ErrInvalidSession is returned for empty or path-unsafe session ids
	ErrInvalidSession = errors.New("invalid session id")

	// ErrInvalidPath is returned when a file path escapes the session directory
	ErrInvalidPath = errors.New("invalid file path")

	// ErrIO wraps filesystem failures
	ErrIO = errors.New("session io error")

	// ErrNotFound is returned when a session directory does not exist
	ErrNotFound = errors.New("session not found")
)
