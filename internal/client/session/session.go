// Package session provides the access-credential sources consumed by the
// security layer and the replay transport.
package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/dmitrijs2005/offlinekit/internal/filex"
)

// Static always returns the same token.
type Static string

func (s Static) Token(context.Context) (string, error) { return string(s), nil }

// FileProvider keeps the token in a file owned by the current user. The file
// is read on every call so a token refreshed by another process is picked up.
type FileProvider struct {
	Path string

	mu sync.Mutex
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

// Token returns the stored token, or "" when no file exists.
func (p *FileProvider) Token(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := os.ReadFile(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Save replaces the stored token.
func (p *FileProvider) Save(_ context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return filex.WriteFileAtomic(p.Path, []byte(strings.TrimSpace(token)+"\n"), 0o600)
}

// Clear forgets the token. Clearing an absent token is not an error.
func (p *FileProvider) Clear(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
