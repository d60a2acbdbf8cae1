package token

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FileStore keeps tokens on a filesystem. Production code uses the OS
// filesystem; tests substitute an in-memory one.
type FileStore struct {
	fs afero.Fs
}

// NewFileStore creates a token store over the given filesystem.
func NewFileStore(fs afero.Fs) *FileStore {
	return &FileStore{fs: fs}
}

// Exists reports whether a token is present at path.
func (s *FileStore) Exists(_ context.Context, path string) (bool, error) {
	ok, err := afero.Exists(s.fs, localPath(path))
	if err != nil {
		return false, fmt.Errorf("stat token %s: %w", path, err)
	}
	return ok, nil
}

// Read returns the content of the token at path.
func (s *FileStore) Read(_ context.Context, path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, localPath(path))
	if err != nil {
		return nil, fmt.Errorf("read token %s: %w", path, err)
	}
	return data, nil
}

// Write records a token at path, creating parent directories as needed.
func (s *FileStore) Write(_ context.Context, path string, content []byte) error {
	p := localPath(path)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create token dir for %s: %w", path, err)
	}
	if err := afero.WriteFile(s.fs, p, content, 0o644); err != nil {
		return fmt.Errorf("write token %s: %w", path, err)
	}
	return nil
}

// Delete removes the token at path. Deleting an absent token is a no-op.
func (s *FileStore) Delete(_ context.Context, path string) error {
	if err := s.fs.Remove(localPath(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete token %s: %w", path, err)
	}
	return nil
}

// localPath strips an optional file:// scheme from a token path.
func localPath(path string) string {
	return strings.TrimPrefix(path, "file://")
}

// Verify FileStore implements Store
var _ Store = (*FileStore)(nil)
