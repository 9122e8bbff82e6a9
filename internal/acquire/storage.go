// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DocumentsDir is the storage-relative directory documents land in.
const DocumentsDir = "books/pdfs"

// Storage persists finished documents.
type Storage interface {
	// Staging returns a directory on the same filesystem as the final
	// location, for temp files that are later moved with Put.
	Staging() (string, error)

	// Put moves srcPath into storage under name. If name is taken a short
	// unique suffix is added. It returns the storage-relative path.
	Put(srcPath, name string) (string, error)
}

// LocalStorage keeps documents under Root/books/pdfs.
type LocalStorage struct {
	Root string
}

func (s *LocalStorage) dir() string {
	return filepath.Join(s.Root, filepath.FromSlash(DocumentsDir))
}

func (s *LocalStorage) Staging() (string, error) {
	dir := s.dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return dir, nil
}

// Put reserves the target name with O_EXCL before renaming over it, so two
// concurrent acquisitions of the same book never overwrite each other.
func (s *LocalStorage) Put(srcPath, name string) (string, error) {
	dir, err := s.Staging()
	if err != nil {
		return "", err
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for attempt := 0; attempt < 5; attempt++ {
		target := filepath.Join(dir, candidate)
		f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			candidate = stem + "_" + uuid.New().String()[:8] + ext
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reserving %s: %w", target, err)
		}
		f.Close()

		if err := os.Rename(srcPath, target); err != nil {
			os.Remove(target)
			return "", fmt.Errorf("moving into storage: %w", err)
		}
		return path.Join(DocumentsDir, candidate), nil
	}
	return "", fmt.Errorf("no free name for %s", name)
}
