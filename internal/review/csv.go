package review

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Column names expected in the CSV header.
const (
	ColumnProductName = "product_name"
	ColumnReviewText  = "review_text"
)

// ErrMissingColumn is returned when the CSV header lacks review_text.
var ErrMissingColumn = errors.New("missing required column")

// ReadCSVFile reads raw rows from a CSV file.
// A missing file is reported with an error satisfying os.IsNotExist.
func ReadCSVFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

// ReadCSV reads raw rows from CSV with a header line. Columns are located by
// name; extra columns are ignored and product_name is optional.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // tolerate ragged rows; short rows mean missing cells
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s (empty file)", ErrMissingColumn, ColumnReviewText)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	textCol, productCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case ColumnReviewText:
			textCol = i
		case ColumnProductName:
			productCol = i
		}
	}
	if textCol < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnReviewText)
	}

	var rows []Row
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", line, err)
		}

		var row Row
		if textCol < len(record) {
			row.ReviewText = record[textCol]
			row.HasText = true
		}
		if productCol >= 0 && productCol < len(record) {
			row.ProductName = record[productCol]
		}
		rows = append(rows, row)
	}

	return rows, nil
}
