package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/matsen/reviewsearch/internal/embedding"
	"github.com/matsen/reviewsearch/internal/review"
)

type mapCache struct {
	entries map[string][]float32
	puts    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]float32)}
}

func (c *mapCache) Get(model, text string) ([]float32, bool, error) {
	v, ok := c.entries[model+"\x00"+text]
	return v, ok, nil
}

func (c *mapCache) Put(model, text string, vector []float32) error {
	c.puts++
	c.entries[model+"\x00"+text] = vector
	return nil
}

var testReviews = []review.Review{
	{ID: 0, ProductName: "Headphones", ReviewText: "Battery lasts all week, great sound."},
	{ID: 1, ProductName: "Mouse", ReviewText: "Scroll wheel squeaks after a month."},
	{ID: 2, ProductName: "Webcam", ReviewText: "Grainy picture in low light."},
}

func TestBuilder_Build(t *testing.T) {
	provider := embedding.NewMockProvider(16)
	builder := NewBuilder(provider, nil)

	var progress []int
	builder.SetProgressReporter(ProgressFunc(func(current, total int) {
		if total != len(testReviews) {
			t.Errorf("total = %d, want %d", total, len(testReviews))
		}
		progress = append(progress, current)
	}))

	idx, stats, err := builder.Build(context.Background(), testReviews)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if idx.Len() != 3 || stats.ReviewsIndexed != 3 {
		t.Errorf("expected 3 entries, got %d (stats %d)", idx.Len(), stats.ReviewsIndexed)
	}
	if idx.ModelName != embedding.MockModel || idx.Dimensions != 16 {
		t.Errorf("header = %s/%d", idx.ModelName, idx.Dimensions)
	}
	for _, r := range testReviews {
		if !idx.Has(r.ID) {
			t.Errorf("review %d missing from index", r.ID)
		}
	}
	if len(progress) != 3 || progress[2] != 3 {
		t.Errorf("progress = %v", progress)
	}
}

func TestBuilder_Build_UsesCache(t *testing.T) {
	cache := newMapCache()
	provider := embedding.NewMockProvider(16)

	if _, _, err := NewBuilder(provider, cache).Build(context.Background(), testReviews); err != nil {
		t.Fatal(err)
	}
	if provider.Calls() != 3 || cache.puts != 3 {
		t.Fatalf("first build: calls %d puts %d", provider.Calls(), cache.puts)
	}

	_, stats, err := NewBuilder(provider, cache).Build(context.Background(), testReviews)
	if err != nil {
		t.Fatal(err)
	}
	if provider.Calls() != 3 {
		t.Errorf("second build should not call the provider, calls = %d", provider.Calls())
	}
	if stats.CacheHits != 3 {
		t.Errorf("CacheHits = %d, want 3", stats.CacheHits)
	}
}

func TestBuilder_Build_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewBuilder(embedding.NewMockProvider(16), nil).Build(ctx, testReviews)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBuilder_Build_DuplicateID(t *testing.T) {
	dup := append([]review.Review{}, testReviews...)
	dup[2].ID = 0

	_, _, err := NewBuilder(embedding.NewMockProvider(16), nil).Build(context.Background(), dup)
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestBuilder_Build_Batches(t *testing.T) {
	provider := embedding.NewMockProvider(16)
	cache := newMapCache()

	// Pre-cache the middle review so only the others reach the provider.
	vec, err := provider.Embed(context.Background(), testReviews[1].ReviewText)
	if err != nil {
		t.Fatal(err)
	}
	cache.Put(provider.ModelName(), testReviews[1].ReviewText, vec.Vector)

	builder := NewBuilder(provider, cache)
	builder.SetBatchSize(2)
	idx, stats, err := builder.Build(context.Background(), testReviews)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Chunks are {0,1} and {2}; review 1 is cached.
	if provider.Batches() != 2 {
		t.Errorf("Batches() = %d, want 2", provider.Batches())
	}
	if stats.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", stats.CacheHits)
	}
	got, _ := idx.Vector(1)
	for i := range got {
		if got[i] != vec.Vector[i] {
			t.Fatal("cached vector should be used for review 1")
		}
	}
}

// singleProvider hides the mock's batch method.
type singleProvider struct{ embedding.Provider }

func TestBuilder_Build_WithoutBatching(t *testing.T) {
	mock := embedding.NewMockProvider(16)
	idx, _, err := NewBuilder(singleProvider{mock}, nil).Build(context.Background(), testReviews)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if idx.Len() != 3 {
		t.Errorf("Len() = %d, want 3", idx.Len())
	}
	if mock.Batches() != 0 || mock.Calls() != 3 {
		t.Errorf("Batches() = %d, Calls() = %d; want 0 and 3", mock.Batches(), mock.Calls())
	}
}
