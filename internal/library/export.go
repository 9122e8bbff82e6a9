// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

// exportPage is the page size used while collecting books for export.
const exportPage = 500

// Export writes every book with the given status (all books when empty),
// oldest first, to w as "yaml" or "json".
func (s *Store) Export(ctx context.Context, w io.Writer, format string, status Status) error {
	var encode func([]Book) error
	switch format {
	case "yaml", "":
		encode = func(books []Book) error {
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(books); err != nil {
				return fmt.Errorf("marshaling YAML: %w", err)
			}
			return enc.Close()
		}
	case "json":
		encode = func(books []Book) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(books); err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			return nil
		}
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	books, err := s.exportBooks(ctx, status)
	if err != nil {
		return err
	}
	return encode(books)
}

func (s *Store) exportBooks(ctx context.Context, status Status) ([]Book, error) {
	all := []Book{}
	for offset := 0; ; offset += exportPage {
		page, total, err := s.List(ctx, ListOptions{Status: status, Limit: exportPage, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("querying for export: %w", err)
		}
		all = append(all, page...)
		if len(page) == 0 || offset+len(page) >= total {
			break
		}
	}
	// List is newest first.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}
