// Package store is the local persistent store of the offline data layer.
//
// A Store wraps one SQLite database (modernc.org/sqlite, no cgo) holding five
// collections: users, operations, security_logs, dead_letters and metadata.
// The schema is versioned with goose migrations; Initialize applies whatever
// is missing and records the resulting version.
//
// Every repository call made before Initialize fails with ErrNotInitialized.
// Platform refusals (read-only media, missing permissions, full disk) are
// reported as ErrStorageUnavailable.
package store
