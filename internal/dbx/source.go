package dbx

import "time"

// Source hands out the live database handle. A store that has not been
// opened yet returns an error instead of a handle.
type Source interface {
	DB() (DBTX, error)
}

// Fixed is a Source over an already-open handle (a *sql.DB or a *sql.Tx).
type Fixed struct {
	Handle DBTX
}

func (f Fixed) DB() (DBTX, error) { return f.Handle, nil }

// UnixNano stores t as integer nanoseconds; the zero time becomes 0.
func UnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// FromUnixNano is the inverse of UnixNano and always returns UTC.
func FromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
