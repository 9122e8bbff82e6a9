// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library records the books a user has added, with the path of
// their stored document, in a SQLite database.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/bookfinder/pkg/types"
)

// Status is the publication state of a library book.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusPending   Status = "pending"
)

// ParseStatus accepts the known statuses; empty means draft.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StatusDraft, nil
	case StatusDraft, StatusPublished, StatusPending:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", types.ErrInvalidRequest, s)
}

// Book is a library record.
type Book struct {
	ID              int64     `json:"id" yaml:"id"`
	Title           string    `json:"title" yaml:"title"`
	Author          string    `json:"author" yaml:"author"`
	Description     string    `json:"description,omitempty" yaml:"description,omitempty"`
	Category        string    `json:"category,omitempty" yaml:"category,omitempty"`
	Status          Status    `json:"status" yaml:"status"`
	PDFPath         string    `json:"pdf_file,omitempty" yaml:"pdf_file,omitempty"`
	CoverImage      string    `json:"cover_image,omitempty" yaml:"cover_image,omitempty"`
	ISBN            string    `json:"isbn,omitempty" yaml:"isbn,omitempty"`
	PublicationDate string    `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`
	Publisher       string    `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Language        string    `json:"language" yaml:"language"`
	SourceAPI       string    `json:"source_api,omitempty" yaml:"source_api,omitempty"`
	ExternalID      string    `json:"external_id,omitempty" yaml:"external_id,omitempty"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"updated_at"`
}

// FromCandidate copies a search candidate into a new draft record. The
// category is the candidate's first category unless one is given.
func FromCandidate(c types.CandidateBook, category string) Book {
	if category == "" && len(c.Categories) > 0 {
		category = c.Categories[0]
	}
	return Book{
		Title:           c.Title,
		Author:          c.Author,
		Description:     c.Description,
		Category:        category,
		Status:          StatusDraft,
		CoverImage:      c.CoverImageURL,
		ISBN:            c.ISBN,
		PublicationDate: c.PublicationDate,
		Publisher:       c.Publisher,
		Language:        c.Language,
		SourceAPI:       c.SourceAPI,
		ExternalID:      c.ExternalID,
	}
}

// Store manages the library database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and its schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			pdf_path TEXT NOT NULL DEFAULT '',
			cover_image TEXT NOT NULL DEFAULT '',
			isbn TEXT NOT NULL DEFAULT '',
			publication_date TEXT NOT NULL DEFAULT '',
			publisher TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			source_api TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_books_title_author ON books(lower(title), lower(author))`,
		`CREATE INDEX IF NOT EXISTS idx_books_status ON books(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

const bookColumns = `id, title, author, description, category, status, pdf_path, cover_image,
	isbn, publication_date, publisher, language, source_api, external_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(row scanner) (Book, error) {
	var b Book
	var status, created, updated string
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.Category, &status, &b.PDFPath,
		&b.CoverImage, &b.ISBN, &b.PublicationDate, &b.Publisher, &b.Language, &b.SourceAPI,
		&b.ExternalID, &created, &updated)
	if err != nil {
		return Book{}, err
	}
	b.Status = Status(status)
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	b.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return b, nil
}

// Create inserts b and returns it with ID and timestamps set.
func (s *Store) Create(ctx context.Context, b Book) (Book, error) {
	if strings.TrimSpace(b.Title) == "" {
		return Book{}, fmt.Errorf("%w: title is required", types.ErrInvalidRequest)
	}
	if b.Status == "" {
		b.Status = StatusDraft
	}
	b.CreatedAt = s.now()
	b.UpdatedAt = b.CreatedAt
	ts := b.CreatedAt.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO books (title, author, description, category, status, pdf_path, cover_image,
			isbn, publication_date, publisher, language, source_api, external_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Title, b.Author, b.Description, b.Category, string(b.Status), b.PDFPath, b.CoverImage,
		b.ISBN, b.PublicationDate, b.Publisher, b.Language, b.SourceAPI, b.ExternalID, ts, ts,
	)
	if err != nil {
		return Book{}, fmt.Errorf("inserting book: %w", err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return Book{}, fmt.Errorf("reading book id: %w", err)
	}
	return b, nil
}

// Get returns the book with id, or an error wrapping types.ErrBookNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, fmt.Errorf("%w: %d", types.ErrBookNotFound, id)
	}
	if err != nil {
		return Book{}, fmt.Errorf("querying book: %w", err)
	}
	return b, nil
}

// FindByTitleAuthor returns the first book whose title and author match
// case-insensitively, ignoring surrounding whitespace.
func (s *Store) FindByTitleAuthor(ctx context.Context, title, author string) (Book, bool, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books
		 WHERE lower(trim(title)) = lower(?) AND lower(trim(author)) = lower(?)
		 ORDER BY id LIMIT 1`,
		strings.TrimSpace(title), strings.TrimSpace(author)))
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, false, nil
	}
	if err != nil {
		return Book{}, false, fmt.Errorf("querying book: %w", err)
	}
	return b, true, nil
}

// ListOptions filters and pages List.
type ListOptions struct {
	Status Status
	Limit  int
	Offset int
}

// List returns books newest first, plus the total matching the filter.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Book, int, error) {
	where, args := "", []any{}
	if opts.Status != "" {
		where = ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM books`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting books: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, limit, opts.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning book: %w", err)
		}
		books = append(books, b)
	}
	return books, total, rows.Err()
}
