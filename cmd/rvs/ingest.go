package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/matsen/reviewsearch/internal/config"
	"github.com/matsen/reviewsearch/internal/ingest"
	"github.com/matsen/reviewsearch/internal/semantic"
	"github.com/spf13/cobra"
)

var (
	noProgress bool
	noCache    bool
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Suppress progress output")
	ingestCmd.Flags().BoolVar(&noCache, "no-cache", false, "Embed every review even if a cached vector exists")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the vector store from the review CSV",
	Long: `Read data/reviews.csv, drop empty and very short reviews, embed the rest
and write vector_store/review_index.faiss and vector_store/processed_data.parquet.

With the default Ollama provider, run 'ollama pull all-minilm:l6-v2' first.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

// IngestResult is the response for the ingest command.
type IngestResult struct {
	Status          string  `json:"status"`
	RowsRead        int     `json:"rows_read"`
	ReviewsIndexed  int     `json:"reviews_indexed"`
	SkippedEmpty    int     `json:"skipped_empty"`
	SkippedShort    int     `json:"skipped_short"`
	CacheHits       int     `json:"cache_hits"`
	DurationSeconds float64 `json:"duration_seconds"`
	Model           string  `json:"model"`
	Dimensions      int     `json:"dimensions"`
	IndexPath       string  `json:"index_path"`
	TablePath       string  `json:"table_path"`
	IndexSizeBytes  int64   `json:"index_size_bytes"`
	TableSizeBytes  int64   `json:"table_size_bytes"`
}

// outputIngestResults outputs the pipeline statistics in the appropriate format.
func outputIngestResults(stats *ingest.Stats) {
	if humanOutput {
		fmt.Printf("\nIngest complete:\n")
		fmt.Printf("  Rows read: %d\n", stats.Read)
		fmt.Printf("  Reviews indexed: %d\n", stats.Kept)
		fmt.Printf("  Skipped: %d empty, %d too short\n", stats.SkippedEmpty, stats.SkippedShort)
		fmt.Printf("  Cache hits: %d\n", stats.CacheHits)
		fmt.Printf("  Time elapsed: %s\n", formatDuration(stats.Duration))
		fmt.Printf("  Index: %s (%s)\n", stats.IndexPath, formatBytes(stats.IndexSizeBytes))
		fmt.Printf("  Table: %s (%s)\n", stats.TablePath, formatBytes(stats.TableSizeBytes))
		fmt.Printf("  Model: %s (%d dims)\n", stats.Model, stats.Dimensions)
		return
	}

	outputJSON(IngestResult{
		Status:          "complete",
		RowsRead:        stats.Read,
		ReviewsIndexed:  stats.Kept,
		SkippedEmpty:    stats.SkippedEmpty,
		SkippedShort:    stats.SkippedShort,
		CacheHits:       stats.CacheHits,
		DurationSeconds: stats.Duration.Seconds(),
		Model:           stats.Model,
		Dimensions:      stats.Dimensions,
		IndexPath:       stats.IndexPath,
		TablePath:       stats.TablePath,
		IndexSizeBytes:  stats.IndexSizeBytes,
		TableSizeBytes:  stats.TableSizeBytes,
	})
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	paths := globalCfg.Paths()

	// Missing input is reported before the model is probed
	if _, err := os.Stat(paths.RawDataPath()); os.IsNotExist(err) {
		slog.Error("review source not found", "path", paths.RawDataPath())
		exitWithError(ExitSetupError, "%v: %s\n\nPlace the review CSV there or set %s.",
			ingest.ErrSourceNotFound, paths.RawDataPath(), config.EnvDataDir)
	}

	// The provider is checked by the pipeline once cleaning has left reviews to embed
	provider := mustNewProvider()

	opts := []ingest.Option{
		ingest.WithLogger(slog.Default()),
		ingest.WithCache(!noCache),
	}
	showProgress := !noProgress && humanOutput
	if showProgress {
		opts = append(opts, ingest.WithProgress(semantic.ProgressFunc(printProgress)))
	}

	stats, err := ingest.NewPipeline(paths, provider, opts...).BuildVectorStore(ctx)

	// Clear progress line if we were showing progress
	if showProgress {
		fmt.Fprintf(os.Stderr, "\r%*s\r", progressLineClearWidth, "")
	}

	if err != nil {
		exitWithError(exitCodeFor(err), "ingest failed: %v%s", err, providerHint(err, provider))
	}

	outputIngestResults(stats)
	return nil
}

const (
	// progressBarWidth is the width in characters for terminal progress display.
	progressBarWidth = 30
	// progressLineClearWidth is the width needed to clear the entire progress line.
	// Should be wider than progressBarWidth + surrounding text (numbers, percentage, brackets).
	progressLineClearWidth = 60
)

// buildProgressBar creates a progress bar string of the given width.
// Returns a string like "[=====>    ]" showing progress.
func buildProgressBar(current, total, width int) string {
	if total == 0 {
		return strings.Repeat(" ", width)
	}
	filled := (width * current) / total
	if filled >= width {
		return strings.Repeat("=", width)
	}
	return strings.Repeat("=", filled) + ">" + strings.Repeat(" ", width-filled-1)
}

// printProgress prints a progress bar to stderr.
func printProgress(current, total int) {
	if total == 0 {
		return
	}
	pct := float64(current) / float64(total) * 100
	bar := buildProgressBar(current, total, progressBarWidth)
	fmt.Fprintf(os.Stderr, "\r[%s] %d/%d (%.0f%%)", bar, current, total, pct)
}
