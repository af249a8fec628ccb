package syncqueue

import "errors"

var (
	// ErrReplayFailure wraps any network or server error met while replaying.
	ErrReplayFailure = errors.New("replay failure")

	ErrOperationNotFound = errors.New("operation not found")
)
