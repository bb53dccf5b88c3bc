// Package media stores uploaded product images on disk and releases them on delete.
package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store is a disk-backed image store. Saved files get a UUID-prefixed name
// under the configured directory; the returned reference is the path the
// product row records and the storefront serves.
type Store struct {
	dir string
}

// NewStore creates the upload directory if needed and returns a Store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the uploaded bytes to disk and returns the stored reference.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	name := uuid.NewString() + "-" + filepath.Base(filename)
	dst := filepath.Join(s.dir, name)

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return filepath.ToSlash(dst), nil
}

// Remove deletes a stored image by its reference. A reference that resolves
// outside the upload directory is rejected; a missing file is not an error,
// so releasing the same reference twice is harmless.
func (s *Store) Remove(ref string) error {
	path := filepath.Clean(filepath.FromSlash(ref))
	absDir, err := filepath.Abs(s.dir)
	if err != nil {
		return fmt.Errorf("failed to resolve upload directory: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve image reference %s: %w", ref, err)
	}
	if !strings.HasPrefix(absPath, absDir+string(filepath.Separator)) {
		return fmt.Errorf("image reference %s is outside the upload directory", ref)
	}

	if err := os.Remove(absPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove image file %s: %w", ref, err)
	}
	return nil
}
