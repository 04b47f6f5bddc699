// Package storage provides the durable, file-backed store for player
// memory. Each user maps to exactly one file under a single root; the
// raw transcript root and the summary root are separate FileStore
// instances and never share files.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidUserID rejects identifiers that cannot be used as file names.
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrIO tags disk failures so the HTTP layer can classify them.
	ErrIO = errors.New("storage failure")
)

// FileStore persists one blob per user under a root directory.
// Writes are whole-file and go through a temp file plus rename, so a
// concurrent Load never observes a partial write.
type FileStore struct {
	root string
	ext  string
}

func NewFileStore(root, ext string) *FileStore {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &FileStore{root: root, ext: ext}
}

// ValidUserID reports whether id is safe to use as a file name. It is
// the only sanitization applied to client-supplied identifiers.
func ValidUserID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	if strings.HasPrefix(id, ".") {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

func (s *FileStore) path(userID string) (string, error) {
	if !ValidUserID(userID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return filepath.Join(s.root, userID+s.ext), nil
}

// Load returns the stored blob for userID. A missing file is not an
// error: it returns ok=false and the caller maps it to an empty or
// null value.
func (s *FileStore) Load(userID string) ([]byte, bool, error) {
	p, err := s.path(userID)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: load %s: %v", ErrIO, userID, err)
	}
	return data, true, nil
}

// Save overwrites the blob for userID, creating the root directory on
// first use. Last writer wins; callers serialize per-user writes.
func (s *FileStore) Save(userID string, data []byte) error {
	p, err := s.path(userID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("%w: create root %s: %v", ErrIO, s.root, err)
	}
	tmp, err := os.CreateTemp(s.root, "."+userID+"-*")
	if err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrIO, userID, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: save %s: %v", ErrIO, userID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: save %s: %v", ErrIO, userID, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: save %s: %v", ErrIO, userID, err)
	}
	return nil
}

// Delete removes the blob for userID. Deleting an absent file is a no-op.
func (s *FileStore) Delete(userID string) error {
	p, err := s.path(userID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: delete %s: %v", ErrIO, userID, err)
	}
	return nil
}
