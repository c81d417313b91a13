// internal/types/errors.go
package types

import "errors"

var (
	// ErrBusy signals that the session already has a regeneration in
	// flight. The event is rejected, not queued.
	ErrBusy = errors.New("session busy")

	// ErrExpired signals a control event addressed to a session that is
	// unknown, evicted, or confirmed-and-closed.
	ErrExpired = errors.New("session expired")

	// ErrArtifactTooLarge signals audio that exceeds chunking limits even
	// after splitting.
	ErrArtifactTooLarge = errors.New("artifact too large")

	// ErrInvalidCursor signals a history cursor that no longer resolves
	// to a record. Callers restart from the initial page.
	ErrInvalidCursor = errors.New("invalid history cursor")

	// ErrNotFound signals a record lookup miss.
	ErrNotFound = errors.New("record not found")
)
