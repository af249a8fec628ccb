package common

import "errors"

// Local-store errors. Callers match them with errors.Is.
var (
	// ErrNotInitialized is returned when the store is used before Initialize.
	ErrNotInitialized = errors.New("local store not initialized")

	// ErrStorageUnavailable means the platform refused storage access
	// (permissions, read-only media, disk full).
	ErrStorageUnavailable = errors.New("local storage unavailable")

	// ErrUnknownIndex is returned for index lookups the collection does not define.
	ErrUnknownIndex = errors.New("unknown index")
)
