package store

import (
	"errors"
	"io/fs"

	"github.com/dmitrijs2005/offlinekit/internal/common"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotInitialized     = common.ErrNotInitialized
	ErrStorageUnavailable = common.ErrStorageUnavailable
	ErrUnknownIndex       = common.ErrUnknownIndex
)

// unavailableCodes are primary SQLite result codes that mean the platform
// denied us storage rather than the query being wrong.
var unavailableCodes = map[int]struct{}{
	sqlite3.SQLITE_CANTOPEN: {},
	sqlite3.SQLITE_FULL:     {},
	sqlite3.SQLITE_PERM:     {},
	sqlite3.SQLITE_READONLY: {},
	sqlite3.SQLITE_IOERR:    {},
	sqlite3.SQLITE_NOTADB:   {},
	sqlite3.SQLITE_AUTH:     {},
}

func isUnavailable(err error) bool {
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		_, ok := unavailableCodes[se.Code()&0xff]
		return ok
	}
	return false
}
