package storage

import (
	"path/filepath"
	"testing"
)

func openTestCache(t *testing.T) *EmbeddingCache {
	t.Helper()
	cache, err := OpenEmbeddingCache(filepath.Join(t.TempDir(), "embedding_cache.db"))
	if err != nil {
		t.Fatalf("OpenEmbeddingCache failed: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestEmbeddingCache_PutGet(t *testing.T) {
	cache := openTestCache(t)

	vec := []float32{0.25, -1.5, 3.125}
	if err := cache.Put("all-minilm:l6-v2", "great sound", vec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := cache.Get("all-minilm:l6-v2", "great sound")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("vector[%d] = %v, want %v", i, got[i], vec[i])
		}
	}
}

func TestEmbeddingCache_KeyedByModelAndText(t *testing.T) {
	cache := openTestCache(t)
	cache.Put("model-a", "great sound", []float32{1})

	if _, ok, _ := cache.Get("model-b", "great sound"); ok {
		t.Error("different model should miss")
	}
	if _, ok, _ := cache.Get("model-a", "great sound!"); ok {
		t.Error("different text should miss")
	}
}

func TestEmbeddingCache_Replace(t *testing.T) {
	cache := openTestCache(t)
	cache.Put("m", "text", []float32{1, 2})
	cache.Put("m", "text", []float32{3, 4})

	got, _, _ := cache.Get("m", "text")
	if got[0] != 3 {
		t.Errorf("expected replaced vector, got %v", got)
	}
	if n, _ := cache.Count("m"); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestEmbeddingCache_CountAndClear(t *testing.T) {
	cache := openTestCache(t)
	cache.Put("m", "one", []float32{1})
	cache.Put("m", "two", []float32{2})
	cache.Put("other", "one", []float32{1})

	if n, err := cache.Count("m"); err != nil || n != 2 {
		t.Errorf("Count(m) = %d, %v", n, err)
	}

	if err := cache.Clear(); err != nil {
		t.Fatal(err)
	}
	if n, _ := cache.Count("m"); n != 0 {
		t.Errorf("Count after Clear = %d", n)
	}
}

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0, 1, -1, 3.4028235e38, 1e-45}
	got, err := decodeVector(encodeVector(vec))
	if err != nil {
		t.Fatal(err)
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], vec[i])
		}
	}

	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
