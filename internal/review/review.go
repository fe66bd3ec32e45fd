// Package review defines the review record and loads it from CSV.
package review

import (
	"strings"
	"unicode/utf8"
)

// MinTextLength is the text length (in characters, after trimming) a review
// must exceed to be kept.
const MinTextLength = 10

// Review is one product review that survived cleaning.
// ID is its dense zero-based position after filtering and is the join key
// between the similarity index and the processed table.
type Review struct {
	ID          int64  `json:"review_id" parquet:"review_id"`
	ProductName string `json:"product_name" parquet:"product_name"`
	ReviewText  string `json:"review_text" parquet:"review_text"`
}

// Row is a raw CSV row before cleaning.
// HasText is false when the review_text cell was absent (short row).
type Row struct {
	ProductName string
	ReviewText  string
	HasText     bool
}

// CleanStats counts rows dropped by Clean.
type CleanStats struct {
	Read         int `json:"rows_read"`
	Kept         int `json:"rows_kept"`
	SkippedEmpty int `json:"skipped_empty"`
	SkippedShort int `json:"skipped_short"`
}

// IsValidText reports whether text passes the non-empty and length filters.
func IsValidText(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) > MinTextLength
}

// Clean drops rows with missing, blank or too-short review text and assigns
// dense ids 0..n-1 in source order. Surviving text is kept unchanged.
func Clean(rows []Row) ([]Review, CleanStats) {
	stats := CleanStats{Read: len(rows)}
	reviews := make([]Review, 0, len(rows))

	for _, row := range rows {
		trimmed := strings.TrimSpace(row.ReviewText)
		if !row.HasText || trimmed == "" {
			stats.SkippedEmpty++
			continue
		}
		if utf8.RuneCountInString(trimmed) <= MinTextLength {
			stats.SkippedShort++
			continue
		}

		reviews = append(reviews, Review{
			ID:          int64(len(reviews)),
			ProductName: row.ProductName,
			ReviewText:  row.ReviewText,
		})
	}

	stats.Kept = len(reviews)
	return reviews, stats
}
