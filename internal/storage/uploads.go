// Package storage persists uploaded images under generated names.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrEmptyUpload is returned when an upload carries no bytes.
var ErrEmptyUpload = errors.New("upload is empty")

// Uploads stores files in a single flat directory.
type Uploads struct {
	dir string
}

// NewUploads returns a store rooted at dir. Call EnsureDir before saving.
func NewUploads(dir string) *Uploads {
	return &Uploads{dir: dir}
}

// Dir is the directory files are written to.
func (u *Uploads) Dir() string {
	return u.dir
}

// EnsureDir creates the upload directory if it does not exist.
func (u *Uploads) EnsureDir() error {
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create uploads dir %s: %w", u.dir, err)
	}
	return nil
}

// Save writes r to a new file and returns its path and contents. The client
// filename only contributes its extension; the stored name is a random UUID.
func (u *Uploads) Save(r io.Reader, clientName string) (string, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return "", nil, ErrEmptyUpload
	}

	path := filepath.Join(u.dir, uuid.New().String()+Extension(clientName))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", nil, fmt.Errorf("failed to store upload: %w", err)
	}

	return path, data, nil
}

// Remove deletes a previously saved file.
func (u *Uploads) Remove(path string) error {
	if filepath.Dir(path) != filepath.Clean(u.dir) {
		return fmt.Errorf("refusing to remove %s outside %s", path, u.dir)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}

// Extension returns the lowercased extension of an untrusted filename, or "" when
// it is missing, too long or not purely alphanumeric.
func Extension(name string) string {
	// Browsers on Windows may send full paths
	name = name[strings.LastIndexAny(name, `/\`)+1:]

	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
