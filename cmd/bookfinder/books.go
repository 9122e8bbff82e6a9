// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bookfinder/internal/library"
)

var booksCmd = &cobra.Command{
	Use:   "books [id]",
	Short: "List library books or show one",
	Long: `Books lists the library newest first, optionally filtered by status, or
prints a single record when an ID is given. With --export the (filtered)
library is written as YAML or JSON to --output or stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBooks,
}

func init() {
	booksCmd.Flags().String("status", "", "filter by status: draft, published, or pending")
	booksCmd.Flags().Int("limit", 20, "maximum number of books")
	booksCmd.Flags().Int("offset", 0, "number of books to skip")
	booksCmd.Flags().String("export", "", "export the library: yaml or json")
	booksCmd.Flags().String("output", "", "export file (default: stdout)")

	rootCmd.AddCommand(booksCmd)
}

func runBooks(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	lib, err := library.Open(cfg.Library.DBPath)
	if err != nil {
		return err
	}
	defer lib.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid book id %q", args[0])
		}
		b, err := lib.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		return enc.Encode(b)
	}

	opts := library.ListOptions{}
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	opts.Offset, _ = cmd.Flags().GetInt("offset")
	if st, _ := cmd.Flags().GetString("status"); st != "" {
		if opts.Status, err = library.ParseStatus(st); err != nil {
			return err
		}
	}

	if format, _ := cmd.Flags().GetString("export"); format != "" {
		return exportBooks(cmd, lib, format, opts.Status)
	}

	books, total, err := lib.List(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return enc.Encode(books)
	}
	formatBooks(books, total, os.Stdout)
	return nil
}

func exportBooks(cmd *cobra.Command, lib *library.Store, format string, status library.Status) error {
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		return lib.Export(cmd.Context(), os.Stdout, format, status)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	if err := lib.Export(cmd.Context(), f, format, status); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported to %s\n", output)
	return nil
}

func formatBooks(books []library.Book, total int, w io.Writer) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}

	fmt.Fprintf(w, "%-5s  %-40s  %-24s  %-9s  %s\n", "ID", "Title", "Author", "Status", "PDF")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, b := range books {
		fmt.Fprintf(w, "%-5d  %-40s  %-24s  %-9s  %s\n",
			b.ID, clip(b.Title, 40), clip(b.Author, 24), b.Status, b.PDFPath)
	}
	fmt.Fprintf(w, "\n%d of %d books\n", len(books), total)
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
