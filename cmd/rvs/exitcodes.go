package main

import (
	"errors"

	"github.com/matsen/reviewsearch/internal/embedding"
	"github.com/matsen/reviewsearch/internal/ingest"
	"github.com/matsen/reviewsearch/internal/review"
	"github.com/matsen/reviewsearch/internal/search"
	"github.com/matsen/reviewsearch/internal/semantic"
)

// Exit codes
const (
	ExitSuccess             = 0 // Success
	ExitError               = 1 // General error (invalid arguments, runtime failure)
	ExitSetupError          = 2 // Setup not done (source file or vector store missing)
	ExitDataError           = 3 // Data error (no valid reviews, inconsistent artifacts)
	ExitProviderUnavailable = 4 // Embedding provider not reachable
	ExitModelError          = 5 // Embedding model not found or index built with another model
)

// exitCodeFor maps a pipeline or engine error to an exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ingest.ErrSourceNotFound),
		errors.Is(err, search.ErrIndexMissing),
		errors.Is(err, search.ErrTableMissing):
		return ExitSetupError
	case errors.Is(err, ingest.ErrNoValidReviews),
		errors.Is(err, review.ErrMissingColumn),
		errors.Is(err, search.ErrInconsistentArtifacts),
		errors.Is(err, semantic.ErrUnsupportedVersion):
		return ExitDataError
	case errors.Is(err, embedding.ErrProviderUnavailable):
		return ExitProviderUnavailable
	case errors.Is(err, search.ErrModelMismatch),
		errors.Is(err, embedding.ErrModelNotFound):
		return ExitModelError
	default:
		return ExitError
	}
}
