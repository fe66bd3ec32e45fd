// Package ingest builds the vector store from the raw review CSV.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/matsen/reviewsearch/internal/config"
	"github.com/matsen/reviewsearch/internal/embedding"
	"github.com/matsen/reviewsearch/internal/review"
	"github.com/matsen/reviewsearch/internal/semantic"
	"github.com/matsen/reviewsearch/internal/storage"
)

// Errors that abort a run before any artifact is written.
var (
	ErrSourceNotFound = errors.New("review source file not found")
	ErrNoValidReviews = errors.New("no valid reviews found after cleaning")
)

// Stats summarizes a successful run.
type Stats struct {
	review.CleanStats
	CacheHits      int           `json:"cache_hits"`
	Model          string        `json:"model"`
	Dimensions     int           `json:"dimensions"`
	Duration       time.Duration `json:"duration"`
	IndexPath      string        `json:"index_path"`
	TablePath      string        `json:"table_path"`
	IndexSizeBytes int64         `json:"index_size_bytes"`
	TableSizeBytes int64         `json:"table_size_bytes"`
}

// Pipeline reads, cleans, embeds, indexes and persists reviews.
type Pipeline struct {
	paths    config.Paths
	provider embedding.Provider
	logger   *slog.Logger
	progress semantic.ProgressReporter
	useCache bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for status lines.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithProgress sets a reporter called after each review is embedded.
func WithProgress(reporter semantic.ProgressReporter) Option {
	return func(p *Pipeline) {
		p.progress = reporter
	}
}

// WithCache enables or disables the SQLite embedding cache.
func WithCache(enabled bool) Option {
	return func(p *Pipeline) {
		p.useCache = enabled
	}
}

// NewPipeline creates a pipeline writing to paths with the given provider.
func NewPipeline(paths config.Paths, provider embedding.Provider, opts ...Option) *Pipeline {
	p := &Pipeline{
		paths:    paths,
		provider: provider,
		logger:   slog.Default(),
		useCache: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BuildVectorStore runs the whole pipeline. On ErrSourceNotFound,
// ErrNoValidReviews or any read/embed failure nothing is written. The index
// and the table are written separately; an interruption between the two
// writes can leave them out of step.
func (p *Pipeline) BuildVectorStore(ctx context.Context) (*Stats, error) {
	start := time.Now()
	p.logger.Info("starting data processing pipeline")

	source := p.paths.RawDataPath()
	rows, err := review.ReadCSVFile(source)
	if err != nil {
		if os.IsNotExist(err) {
			err = fmt.Errorf("%w: %s", ErrSourceNotFound, source)
		}
		p.logger.Error("loading reviews failed", "path", source, "error", err)
		return nil, err
	}
	p.logger.Info("loaded reviews", "count", len(rows), "path", source)

	reviews, cleanStats := review.Clean(rows)
	if len(reviews) == 0 {
		p.logger.Error("no valid reviews after cleaning",
			"rows_read", cleanStats.Read,
			"skipped_empty", cleanStats.SkippedEmpty,
			"skipped_short", cleanStats.SkippedShort)
		return nil, ErrNoValidReviews
	}
	p.logger.Info("cleaned data", "remaining", len(reviews),
		"skipped_empty", cleanStats.SkippedEmpty, "skipped_short", cleanStats.SkippedShort)

	// The model is only probed once there is something to embed
	if checker, ok := p.provider.(embedding.Checker); ok {
		if err := checker.Check(ctx); err != nil {
			p.logger.Error("embedding provider not ready", "model", p.provider.ModelName(), "error", err)
			return nil, err
		}
	}

	idx, buildStats, err := p.embed(ctx, reviews)
	if err != nil {
		p.logger.Error("building index failed", "error", err)
		return nil, err
	}
	idx.SkippedCount = cleanStats.SkippedEmpty + cleanStats.SkippedShort
	p.logger.Info("index built", "vectors", idx.Len(), "model", idx.ModelName,
		"cache_hits", buildStats.CacheHits, "elapsed", buildStats.Duration.Round(time.Millisecond))

	indexPath := p.paths.IndexPath()
	p.logger.Info("saving index", "path", indexPath)
	if err := idx.Save(indexPath); err != nil {
		return nil, fmt.Errorf("saving index: %w", err)
	}

	tablePath := p.paths.TablePath()
	p.logger.Info("saving processed data", "path", tablePath)
	if err := storage.WriteTable(tablePath, reviews); err != nil {
		return nil, fmt.Errorf("saving processed data: %w", err)
	}

	stats := &Stats{
		CleanStats:     cleanStats,
		CacheHits:      buildStats.CacheHits,
		Model:          idx.ModelName,
		Dimensions:     idx.Dimensions,
		Duration:       time.Since(start),
		IndexPath:      indexPath,
		TablePath:      tablePath,
		IndexSizeBytes: storage.FileSize(indexPath),
		TableSizeBytes: storage.FileSize(tablePath),
	}
	p.logger.Info("pipeline finished", "reviews", stats.Kept, "elapsed", stats.Duration.Round(time.Millisecond))

	return stats, nil
}

// embed builds the index, opening the embedding cache when enabled.
// The cache lives in the vector store directory, so the directory is only
// created here, after the source has been validated. If embedding fails, a
// cache file or directory created by this run is removed again.
func (p *Pipeline) embed(ctx context.Context, reviews []review.Review) (*semantic.Index, *semantic.BuildStats, error) {
	var cache semantic.EmbeddingCache
	discard := func() {}
	if p.useCache {
		discard = p.cacheDiscarder()
		if err := p.paths.EnsureVectorStoreDir(); err != nil {
			return nil, nil, fmt.Errorf("creating vector store directory: %w", err)
		}
		c, err := storage.OpenEmbeddingCache(p.paths.EmbeddingCachePath())
		if err != nil {
			discard()
			return nil, nil, err
		}
		defer func() {
			if err := c.Close(); err != nil {
				p.logger.Warn("closing embedding cache", "error", err)
			}
			discard()
		}()
		cache = c
	}

	builder := semantic.NewBuilder(p.provider, cache)
	if p.progress != nil {
		builder.SetProgressReporter(p.progress)
	}

	p.logger.Info("generating embeddings", "reviews", len(reviews), "model", p.provider.ModelName())
	idx, stats, err := builder.Build(ctx, reviews)
	if err != nil {
		return nil, nil, err
	}
	discard = func() {}
	return idx, stats, nil
}

// cacheDiscarder records which of the vector store directory and the cache
// file exist now, and returns a func removing whichever did not.
func (p *Pipeline) cacheDiscarder() func() {
	dir := p.paths.VectorStoreDir
	cachePath := p.paths.EmbeddingCachePath()
	dirExisted := pathExists(dir)
	cacheExisted := pathExists(cachePath)

	return func() {
		if !cacheExisted {
			for _, path := range []string{cachePath, cachePath + "-journal", cachePath + "-wal", cachePath + "-shm"} {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					p.logger.Warn("removing embedding cache", "path", path, "error", err)
				}
			}
		}
		if !dirExisted {
			// Remove fails on a non-empty directory, which is left alone.
			if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
				p.logger.Warn("removing vector store directory", "path", dir, "error", err)
			}
		}
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
