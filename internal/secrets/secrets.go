// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files, one
// key per file. File names are case-insensitive and may use underscores, so
// GROQ_API_KEY and groq-api-key name the same secret.
//
// Known keys: groq-api-key, anthropic-api-key, google-books-api-key.
package secrets

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxSecretBytes bounds a single key file; anything larger is not a key.
const maxSecretBytes = 16 << 10

// Set maps normalized key names to values.
type Set map[string]string

// Load reads every regular file in dir. A missing directory yields an empty
// Set. Dotfiles, empty files, oversized files, and unreadable files are
// skipped; the last two with a warning.
func Load(dir string) (Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	set := Set{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		value, err := readKey(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("secrets.skip", "file", name, "error", err)
			continue
		}
		if value != "" {
			set[Normalize(name)] = value
		}
	}
	return set, nil
}

func readKey(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSecretBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxSecretBytes {
		return "", fmt.Errorf("larger than %d bytes", maxSecretBytes)
	}
	return strings.TrimSpace(string(data)), nil
}

// Normalize maps a file or key name to its canonical form.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

// Lookup returns the value of the first key that is set.
func (s Set) Lookup(keys ...string) string {
	for _, k := range keys {
		if v := s[Normalize(k)]; v != "" {
			return v
		}
	}
	return ""
}

// Keys lists the loaded key names, sorted. Values are never exposed.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
