// Package storage persists the processed review table and the embedding cache.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/matsen/reviewsearch/internal/review"
)

// Errors returned by table operations.
var (
	ErrTableNotFound = errors.New("processed review table not found")
	ErrDuplicateRow  = errors.New("duplicate review id in table")
)

// Table is the processed review table, addressable by review id.
type Table struct {
	rows []review.Review
	byID map[int64]int
}

// NewTable indexes reviews by id. Ids must be unique.
func NewTable(reviews []review.Review) (*Table, error) {
	t := &Table{
		rows: reviews,
		byID: make(map[int64]int, len(reviews)),
	}
	for i, r := range reviews {
		if _, exists := t.byID[r.ID]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateRow, r.ID)
		}
		t.byID[r.ID] = i
	}
	return t, nil
}

// Get returns the review with the given id.
func (t *Table) Get(id int64) (review.Review, bool) {
	i, ok := t.byID[id]
	if !ok {
		return review.Review{}, false
	}
	return t.rows[i], true
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns all rows in stored order.
func (t *Table) Rows() []review.Review {
	return t.rows
}

// WriteTable writes reviews to a Parquet file with columns
// review_id, product_name and review_text. The file is written to a temp
// path and renamed into place.
func WriteTable(path string, reviews []review.Review) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating table directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := parquet.WriteFile(tempPath, reviews); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("writing parquet: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// ReadTable loads the processed review table from a Parquet file.
func ReadTable(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("opening table: %w", err)
	}

	reviews, err := parquet.ReadFile[review.Review](path)
	if err != nil {
		return nil, fmt.Errorf("reading parquet: %w", err)
	}

	return NewTable(reviews)
}

// FileSize returns the size of a file in bytes, or 0 if it cannot be read.
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
