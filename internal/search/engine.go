// Package search answers free-text queries against the persisted vector store.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/matsen/reviewsearch/internal/config"
	"github.com/matsen/reviewsearch/internal/embedding"
	"github.com/matsen/reviewsearch/internal/review"
	"github.com/matsen/reviewsearch/internal/semantic"
	"github.com/matsen/reviewsearch/internal/storage"
)

const (
	// DefaultK is the number of results returned when the caller has no preference.
	DefaultK = 5

	// MaxK bounds k; larger requests are clamped.
	MaxK = 100
)

// Errors returned by the engine.
var (
	ErrIndexMissing          = errors.New("similarity index not found; run 'rvs ingest' first")
	ErrTableMissing          = errors.New("processed review table not found; run 'rvs ingest' first")
	ErrInconsistentArtifacts = errors.New("index and review table disagree; rerun 'rvs ingest'")
	ErrModelMismatch         = errors.New("index was built with a different embedding model")
	ErrInvalidK              = errors.New("k must be a positive integer")
)

// Result is a review matched by a query.
// Distance is the raw Euclidean distance between embeddings and is not
// bounded by 1. Score maps it into (0, 1] as 1/(1+Distance).
type Result struct {
	review.Review
	Distance float64 `json:"distance"`
	Score    float64 `json:"score"`
}

// Info describes the loaded vector store.
type Info struct {
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Reviews    int       `json:"reviews"`
	Skipped    int       `json:"skipped"`
	CreatedAt  time.Time `json:"created_at"`
}

// Engine holds the embedding provider, index and table for the life of the
// process. It is read-only after New returns and safe for concurrent use.
type Engine struct {
	provider embedding.Provider
	index    *semantic.Index
	table    *storage.Table
	logger   *slog.Logger
}

// New loads the vector store at paths. The index file is checked before the
// provider is touched, so a missing index never triggers a model call.
func New(paths config.Paths, provider embedding.Provider, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	indexPath := paths.IndexPath()
	if !semantic.Exists(indexPath) {
		return nil, fmt.Errorf("%w (looked for %s)", ErrIndexMissing, indexPath)
	}

	idx, err := semantic.Load(indexPath)
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}

	table, err := storage.ReadTable(paths.TablePath())
	if err != nil {
		if errors.Is(err, storage.ErrTableNotFound) {
			return nil, fmt.Errorf("%w (looked for %s)", ErrTableMissing, paths.TablePath())
		}
		return nil, fmt.Errorf("loading review table: %w", err)
	}

	if err := checkJoin(idx, table); err != nil {
		return nil, err
	}

	if idx.ModelName != provider.ModelName() || idx.Dimensions != provider.Dimensions() {
		return nil, fmt.Errorf("%w: index has %s (%d dims), provider is %s (%d dims)",
			ErrModelMismatch, idx.ModelName, idx.Dimensions, provider.ModelName(), provider.Dimensions())
	}

	logger.Info("search engine initialized", "reviews", idx.Len(), "model", idx.ModelName)

	return &Engine{
		provider: provider,
		index:    idx,
		table:    table,
		logger:   logger,
	}, nil
}

// checkJoin verifies every index id has exactly one table row and vice versa.
func checkJoin(idx *semantic.Index, table *storage.Table) error {
	if idx.Len() != table.Len() {
		return fmt.Errorf("%w: %d vectors but %d rows", ErrInconsistentArtifacts, idx.Len(), table.Len())
	}
	for _, r := range table.Rows() {
		if !idx.Has(r.ID) {
			return fmt.Errorf("%w: row %d has no vector", ErrInconsistentArtifacts, r.ID)
		}
	}
	return nil
}

// Search returns up to k reviews closest to query, best match first.
// A blank query or an index with no hits returns nil without error.
// Long queries are capped by the provider at embedding.MaxInputLength, the
// same limit applied to review text at ingestion.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if k < 1 {
		return nil, ErrInvalidK
	}
	if k > MaxK {
		k = MaxK
	}

	emb, err := e.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := e.index.Search(emb.Vector, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	results, err := e.join(hits)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("search", "query", query, "k", k, "hits", len(results))
	return results, nil
}

// Similar returns up to k reviews closest to the review with the given id.
func (e *Engine) Similar(id int64, k int) ([]Result, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if k > MaxK {
		k = MaxK
	}

	hits, err := e.index.FindSimilar(id, k)
	if err != nil {
		return nil, err
	}
	return e.join(hits)
}

// Review returns a single review by id.
func (e *Engine) Review(id int64) (review.Review, bool) {
	return e.table.Get(id)
}

// Info describes the loaded vector store.
func (e *Engine) Info() Info {
	return Info{
		Model:      e.index.ModelName,
		Dimensions: e.index.Dimensions,
		Reviews:    e.index.Len(),
		Skipped:    e.index.SkippedCount,
		CreatedAt:  e.index.CreatedAt,
	}
}

// ModelName returns the embedding model used for queries.
func (e *Engine) ModelName() string {
	return e.provider.ModelName()
}

// join attaches table rows to hits, keeping the hits' distance order.
func (e *Engine) join(hits []semantic.Hit) ([]Result, error) {
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		r, ok := e.table.Get(h.ID)
		if !ok {
			return nil, fmt.Errorf("%w: hit %d has no row", ErrInconsistentArtifacts, h.ID)
		}
		results = append(results, Result{
			Review:   r,
			Distance: h.Distance,
			Score:    Score(h.Distance),
		})
	}
	return results, nil
}

// Score converts a non-negative distance into a similarity in (0, 1].
func Score(distance float64) float64 {
	return 1 / (1 + distance)
}
