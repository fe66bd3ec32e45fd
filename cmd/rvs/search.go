package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matsen/reviewsearch/internal/search"
	"github.com/spf13/cobra"
)

var searchK int

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVarP(&searchK, "k", "k", search.DefaultK, "Number of results to return")
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find the reviews closest in meaning to a query",
	Long: `Embed the query and return the k nearest reviews, closest first.

Distances are Euclidean distances between embeddings (smaller is closer);
score is 1/(1+distance).

Examples:
  rvs search "battery dies quickly"
  rvs search "great sound" -k 10 --human`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	if searchK < 1 {
		exitWithError(ExitError, "%v", search.ErrInvalidK)
	}

	// A blank query has no results and never reaches the vector store or the model
	if strings.TrimSpace(query) == "" {
		outputSearchResults(query, min(searchK, search.MaxK), mustNewProvider().ModelName(), nil)
		return nil
	}

	engine := mustLoadEngine(cmd.Context())

	results, err := engine.Search(cmd.Context(), query, searchK)
	if err != nil {
		if errors.Is(err, search.ErrInvalidK) {
			exitWithError(ExitError, "%v", err)
		}
		exitWithError(ExitError, "searching: %v", err)
	}

	outputSearchResults(query, min(searchK, search.MaxK), engine.ModelName(), results)
	return nil
}

// outputSearchResults prints search results in the appropriate format.
func outputSearchResults(query string, k int, model string, results []search.Result) {
	if humanOutput {
		fmt.Printf("Search: \"%s\"\n", query)
		if len(results) == 0 {
			fmt.Println("No matching reviews.")
			return
		}
		fmt.Printf("Found %d reviews\n\n", len(results))
		printResultsHuman(results)
		return
	}

	resp := newResultsResponse(k, model, results)
	resp.Query = query
	outputJSON(resp)
}
