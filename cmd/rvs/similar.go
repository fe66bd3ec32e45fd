package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/matsen/reviewsearch/internal/search"
	"github.com/matsen/reviewsearch/internal/semantic"
	"github.com/spf13/cobra"
)

var similarK int

func init() {
	rootCmd.AddCommand(similarCmd)

	similarCmd.Flags().IntVarP(&similarK, "k", "k", search.DefaultK, "Number of results to return")
}

var similarCmd = &cobra.Command{
	Use:   "similar <review-id>",
	Short: "Find reviews close to an indexed review",
	Long: `Return the k reviews nearest to an already indexed review.
The review itself is excluded. Review ids are the review_id column of
processed_data.parquet, as shown by 'rvs search'.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func runSimilar(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		exitWithError(ExitError, "invalid review id %q", args[0])
	}
	if similarK < 1 {
		exitWithError(ExitError, "%v", search.ErrInvalidK)
	}

	engine := mustLoadEngine(cmd.Context())

	results, err := engine.Similar(id, similarK)
	if err != nil {
		if errors.Is(err, semantic.ErrReviewNotIndexed) {
			exitWithError(ExitError, "review %d is not in the index", id)
		}
		exitWithError(ExitError, "finding similar reviews: %v", err)
	}

	if humanOutput {
		if source, ok := engine.Review(id); ok {
			fmt.Printf("Similar to #%d %s:\n", id, source.ProductName)
			fmt.Printf("   %s\n\n", wrapText(source.ReviewText, TextWrapWidth, "   "))
		}
		if len(results) == 0 {
			fmt.Println("No other reviews in the index.")
			return nil
		}
		printResultsHuman(results)
		return nil
	}

	resp := newResultsResponse(min(similarK, search.MaxK), engine.ModelName(), results)
	resp.ReviewID = &id
	outputJSON(resp)
	return nil
}
