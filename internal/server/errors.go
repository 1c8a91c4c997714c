// Package server defines the error taxonomy shared by the registry, queue,
// and room manager. All of these errors are recovered locally; none should
// ever terminate the process.
package server

import "errors"

var (
	// ErrNotFound reports an unknown connection or room identifier. Callers
	// must treat it as "already disconnected", not as a fatal condition.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPairing reports a room creation attempt with an unregistered
	// member or with both members being the same connection.
	ErrInvalidPairing = errors.New("invalid pairing")

	// ErrStaleRelay reports a relay targeting a room the sender is no longer
	// a member of. Such messages are dropped silently.
	ErrStaleRelay = errors.New("stale relay")

	// ErrRaceLoss reports that a dequeued pairing candidate vanished before
	// room creation completed. The survivor is re-enqueued and pairing is
	// retried.
	ErrRaceLoss = errors.New("pairing candidate vanished")
)
