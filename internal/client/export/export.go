// Package export writes offline data bundles to a destination: a local
// directory or an S3-compatible bucket.
package export

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/filex"
	"github.com/google/uuid"
)

// Sink stores one export and returns where it ended up.
type Sink interface {
	Write(ctx context.Context, name string, data []byte) (location string, err error)
}

// ObjectName builds a unique, date-partitioned name for an export of userID.
func ObjectName(userID string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("users/%s/%d/%02d/%02d/%s.json",
		url.PathEscape(userID), at.Year(), at.Month(), at.Day(), uuid.NewString())
}

// FileSink writes exports below Dir with owner-only permissions.
type FileSink struct {
	Dir string
}

func (s FileSink) Write(_ context.Context, name string, data []byte) (string, error) {
	dir, err := filex.EnsureDir(s.Dir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.FromSlash(name))
	if rel, err := filepath.Rel(dir, path); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("export name %q escapes %s", name, dir)
	}
	if err := filex.WriteFileAtomic(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
