package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/matsen/reviewsearch/internal/search"
)

// Constants for output formatting.
const (
	ProductNameMaxLen = 40 // Product name in result headers
	TextWrapWidth     = 72 // Review text wrap width
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ResultsResponse is the response for search and similar commands.
type ResultsResponse struct {
	Query    string          `json:"query,omitempty"`
	ReviewID *int64          `json:"review_id,omitempty"`
	K        int             `json:"k"`
	Model    string          `json:"model"`
	Results  []search.Result `json:"results"`
	Total    int             `json:"total"`
}

// newResultsResponse fills a ResultsResponse, using an empty array for no results.
func newResultsResponse(k int, model string, results []search.Result) ResultsResponse {
	if results == nil {
		results = []search.Result{}
	}
	return ResultsResponse{K: k, Model: model, Results: results, Total: len(results)}
}

// printResultsHuman prints results in human-readable format.
// Used by both search and similar commands.
func printResultsHuman(results []search.Result) {
	for i, r := range results {
		fmt.Printf("%d. [%.3f] #%d %s\n", i+1, r.Distance, r.ID, truncateString(r.ProductName, ProductNameMaxLen))
		fmt.Printf("   %s\n\n", wrapText(r.ReviewText, TextWrapWidth, "   "))
	}
}

// truncateString truncates a string to maxLen runes, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// wrapText wraps text to the specified width with indentation on subsequent lines.
func wrapText(text string, width int, indent string) string {
	if len(text) <= width {
		return text
	}

	var lines []string
	words := strings.Fields(text)
	var currentLine strings.Builder

	for _, word := range words {
		if currentLine.Len() == 0 {
			currentLine.WriteString(word)
		} else if currentLine.Len()+1+len(word) <= width {
			currentLine.WriteString(" ")
			currentLine.WriteString(word)
		} else {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
			currentLine.WriteString(word)
		}
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	return strings.Join(lines, "\n"+indent)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// formatBytes formats bytes in a human-readable way.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
