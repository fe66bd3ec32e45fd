package semantic

import (
	"context"
	"fmt"
	"time"

	"github.com/matsen/reviewsearch/internal/embedding"
	"github.com/matsen/reviewsearch/internal/review"
)

// ProgressReporter receives progress updates during index building.
type ProgressReporter interface {
	// OnProgress is called with the current progress.
	OnProgress(current, total int)
}

// ProgressFunc is a function adapter for ProgressReporter.
type ProgressFunc func(current, total int)

// OnProgress implements ProgressReporter.
func (f ProgressFunc) OnProgress(current, total int) {
	f(current, total)
}

// EmbeddingCache stores vectors by model and text so reruns can skip the model.
type EmbeddingCache interface {
	Get(model, text string) ([]float32, bool, error)
	Put(model, text string, vector []float32) error
}

// DefaultBatchSize is how many texts are sent per request to providers that
// support batching.
const DefaultBatchSize = 32

// Builder embeds reviews and constructs an index from them.
type Builder struct {
	provider  embedding.Provider
	cache     EmbeddingCache
	progress  ProgressReporter
	batchSize int
}

// NewBuilder creates a new index builder. cache may be nil.
func NewBuilder(provider embedding.Provider, cache EmbeddingCache) *Builder {
	return &Builder{
		provider:  provider,
		cache:     cache,
		batchSize: DefaultBatchSize,
	}
}

// SetProgressReporter sets the progress reporter for the builder.
func (b *Builder) SetProgressReporter(reporter ProgressReporter) {
	b.progress = reporter
}

// SetBatchSize sets how many reviews are embedded per provider request.
// Values below 1 are ignored.
func (b *Builder) SetBatchSize(n int) {
	if n > 0 {
		b.batchSize = n
	}
}

// Build embeds every review and adds it to a new index under its id.
// Reviews are processed in chunks; within a chunk, cached vectors are reused
// and the rest are embedded together when the provider supports batching.
func (b *Builder) Build(ctx context.Context, reviews []review.Review) (*Index, *BuildStats, error) {
	startTime := time.Now()
	model := b.provider.ModelName()

	idx := NewIndex(model, b.provider.Dimensions())
	stats := &BuildStats{}

	total := len(reviews)
	for start := 0; start < total; start += b.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		chunk := reviews[start:min(start+b.batchSize, total)]
		vectors, hits, err := b.embedChunk(ctx, model, chunk)
		if err != nil {
			return nil, nil, err
		}
		stats.CacheHits += hits

		for i, r := range chunk {
			if err := idx.Add(r.ID, vectors[i]); err != nil {
				return nil, nil, fmt.Errorf("adding review %d: %w", r.ID, err)
			}
			stats.ReviewsIndexed++

			if b.progress != nil {
				b.progress.OnProgress(start+i+1, total)
			}
		}
	}

	idx.BuildDurationMs = time.Since(startTime).Milliseconds()
	stats.Duration = time.Since(startTime)

	return idx, stats, nil
}

// embedChunk returns one vector per review in chunk and the number served
// from the cache. Fresh vectors are written back to the cache.
func (b *Builder) embedChunk(ctx context.Context, model string, chunk []review.Review) ([][]float32, int, error) {
	vectors := make([][]float32, len(chunk))
	var misses []int
	hits := 0

	for i, r := range chunk {
		if b.cache != nil {
			vec, ok, err := b.cache.Get(model, r.ReviewText)
			if err != nil {
				return nil, 0, fmt.Errorf("reading cache: %w", err)
			}
			if ok && len(vec) == b.provider.Dimensions() {
				vectors[i] = vec
				hits++
				continue
			}
		}
		misses = append(misses, i)
	}

	if len(misses) == 0 {
		return vectors, hits, nil
	}

	fresh, err := b.embedTexts(ctx, chunk, misses)
	if err != nil {
		return nil, 0, err
	}

	for j, i := range misses {
		vectors[i] = fresh[j]
		if b.cache != nil {
			if err := b.cache.Put(model, chunk[i].ReviewText, fresh[j]); err != nil {
				return nil, 0, fmt.Errorf("writing cache: %w", err)
			}
		}
	}
	return vectors, hits, nil
}

// embedTexts embeds chunk[i] for each i in positions, in one request when the
// provider can batch.
func (b *Builder) embedTexts(ctx context.Context, chunk []review.Review, positions []int) ([][]float32, error) {
	out := make([][]float32, len(positions))

	if bp, ok := b.provider.(embedding.BatchProvider); ok {
		texts := make([]string, len(positions))
		for j, i := range positions {
			texts[j] = chunk[i].ReviewText
		}
		embs, err := bp.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding reviews %d..%d: %w", chunk[positions[0]].ID, chunk[positions[len(positions)-1]].ID, err)
		}
		if len(embs) != len(texts) {
			return nil, fmt.Errorf("provider returned %d embeddings for %d reviews", len(embs), len(texts))
		}
		for j, emb := range embs {
			out[j] = emb.Vector
		}
		return out, nil
	}

	for j, i := range positions {
		emb, err := b.provider.Embed(ctx, chunk[i].ReviewText)
		if err != nil {
			return nil, fmt.Errorf("embedding review %d: %w", chunk[i].ID, err)
		}
		out[j] = emb.Vector
	}
	return out, nil
}
