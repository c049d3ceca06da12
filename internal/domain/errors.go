package domain

import "errors"

var (
	// ErrConflict is returned when a connection that already has an active
	// session tries to join again.
	ErrConflict = errors.New("connection already has an active session")

	// ErrNotFound is returned for lookups on a connection with no session.
	ErrNotFound = errors.New("session not found")

	// ErrStoreUnavailable wraps every failure of the history backend.
	ErrStoreUnavailable = errors.New("history store unavailable")
)
