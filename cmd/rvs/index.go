package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/matsen/reviewsearch/internal/search"
	"github.com/matsen/reviewsearch/internal/semantic"
	"github.com/matsen/reviewsearch/internal/storage"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexCheckCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect the vector store",
	Long:  `Commands for checking the similarity index and review table.`,
}

// IndexCheckResult is the response for index check command.
type IndexCheckResult struct {
	Status           string `json:"status"`
	ReviewsIndexed   int    `json:"reviews_indexed"`
	TableRows        int    `json:"table_rows"`
	ReviewsSkipped   int    `json:"reviews_skipped"`
	Model            string `json:"model"`
	Dimensions       int    `json:"dimensions"`
	ConfiguredModel  string `json:"configured_model"`
	IndexCreated     string `json:"index_created"`
	IndexSizeBytes   int64  `json:"index_size_bytes"`
	TableSizeBytes   int64  `json:"table_size_bytes"`
	CachedEmbeddings int    `json:"cached_embeddings"`
	Problem          string `json:"problem,omitempty"`
	Recommendation   string `json:"recommendation,omitempty"`
}

var indexCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check vector store health",
	Long: `Load the similarity index and the review table, verify that every
indexed review has exactly one table row and that the index was built with
the configured embedding model. No model calls are made.`,
	Args: cobra.NoArgs,
	RunE: runIndexCheck,
}

// outputCheckResults outputs the index check results in the appropriate format.
func outputCheckResults(result IndexCheckResult, exitCode int) {
	if humanOutput {
		fmt.Printf("Vector Store Status: %s\n\n", result.Status)
		fmt.Printf("Reviews:\n")
		fmt.Printf("  In similarity index: %d\n", result.ReviewsIndexed)
		fmt.Printf("  In review table: %d\n", result.TableRows)
		fmt.Printf("  Skipped at ingest: %d\n", result.ReviewsSkipped)
		fmt.Printf("\nIndex Info:\n")
		fmt.Printf("  Model: %s (%d dims)\n", result.Model, result.Dimensions)
		fmt.Printf("  Configured model: %s\n", result.ConfiguredModel)
		fmt.Printf("  Created: %s\n", result.IndexCreated)
		fmt.Printf("  Index size: %s\n", formatBytes(result.IndexSizeBytes))
		fmt.Printf("  Table size: %s\n", formatBytes(result.TableSizeBytes))
		fmt.Printf("  Cached embeddings: %d\n", result.CachedEmbeddings)
		if result.Problem != "" {
			fmt.Printf("\nProblem: %s\n", result.Problem)
		}
		if result.Recommendation != "" {
			fmt.Printf("\n%s\n", result.Recommendation)
		}
	} else {
		outputJSON(result)
	}

	if exitCode != ExitSuccess {
		os.Exit(exitCode)
	}
}

func runIndexCheck(cmd *cobra.Command, args []string) error {
	paths := globalCfg.Paths()
	provider := mustNewProvider()

	indexPath := paths.IndexPath()
	if !semantic.Exists(indexPath) {
		exitWithError(ExitSetupError, "%v (looked for %s)", search.ErrIndexMissing, indexPath)
	}

	idx, err := semantic.Load(indexPath)
	if err != nil {
		exitWithError(exitCodeFor(err), "loading index: %v", err)
	}

	result := IndexCheckResult{
		Status:          "healthy",
		ReviewsIndexed:  idx.Len(),
		ReviewsSkipped:  idx.SkippedCount,
		Model:           idx.ModelName,
		Dimensions:      idx.Dimensions,
		ConfiguredModel: provider.ModelName(),
		IndexCreated:    idx.CreatedAt.Format(time.RFC3339),
		TableSizeBytes:  storage.FileSize(paths.TablePath()),
	}

	// Index size is informational; a stat failure is not fatal
	if size, err := semantic.FileSize(indexPath); err == nil {
		result.IndexSizeBytes = size
	} else if humanOutput {
		fmt.Fprintf(os.Stderr, "Warning: could not determine index size: %v\n", err)
	}

	if table, err := storage.ReadTable(paths.TablePath()); err == nil {
		result.TableRows = table.Len()
	}

	if _, err := os.Stat(paths.EmbeddingCachePath()); err == nil {
		if cache, err := storage.OpenEmbeddingCache(paths.EmbeddingCachePath()); err == nil {
			if n, err := cache.Count(idx.ModelName); err == nil {
				result.CachedEmbeddings = n
			}
			cache.Close()
		}
	}

	// search.New repeats the join and model checks the engine relies on
	exitCode := ExitSuccess
	if _, err := search.New(paths, provider, nil); err != nil {
		result.Status = "broken"
		result.Problem = err.Error()
		result.Recommendation = "Run 'rvs ingest' to rebuild the vector store"
		exitCode = exitCodeFor(err)
		if errors.Is(err, search.ErrModelMismatch) {
			result.Status = "stale"
			result.Recommendation = "Run 'rvs ingest' with the configured model, or configure the model the index was built with"
		}
	}

	outputCheckResults(result, exitCode)
	return nil
}
