// Package kb persists the knowledge base: a single Markdown rules document
// replaced wholesale on every save. Writers are not coordinated; the last
// write wins.
package kb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

// ErrReadOnly reports that the backing storage cannot be written at all, as
// opposed to a transient I/O failure. Callers surface it with guidance to move
// the knowledge base to a writable persistence backend.
var ErrReadOnly = errors.New("knowledge base storage is read-only")

// Store loads and saves the knowledge base text.
type Store interface {
	// Load returns the current text, or "" when no document exists yet.
	Load(ctx context.Context) (string, error)
	// Save replaces the whole document.
	Save(ctx context.Context, text string) error
}

// FileStore keeps the knowledge base in one file on local disk.
type FileStore struct {
	path      string
	writeFile func(name string, data []byte, perm os.FileMode) error
}

// NewFileStore returns a store backed by path. The file does not need to exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, writeFile: os.WriteFile}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read knowledge base: %w", err)
	}
	return string(data), nil
}

func (s *FileStore) Save(_ context.Context, text string) error {
	if err := s.writeFile(s.path, []byte(text), 0o644); err != nil {
		if errors.Is(err, syscall.EROFS) {
			return fmt.Errorf("%w: %s", ErrReadOnly, s.path)
		}
		return fmt.Errorf("write knowledge base: %w", err)
	}
	return nil
}
