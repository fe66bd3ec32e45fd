package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"unicode"
)

// MockModel is the model name reported by MockProvider.
const MockModel = "mock-bag-of-words"

// MockProvider is a deterministic offline Provider for tests and demos.
// Each lowercased word is hashed into one dimension and the counts are
// normalized, so texts sharing words land close together.
type MockProvider struct {
	dimensions int
	model      string
	calls      atomic.Int64
	batches    atomic.Int64
}

// NewMockProvider creates a mock provider with the given dimensions.
func NewMockProvider(dimensions int) *MockProvider {
	return &MockProvider{dimensions: dimensions, model: MockModel}
}

// WithModelName overrides the reported model name.
func (m *MockProvider) WithModelName(name string) *MockProvider {
	m.model = name
	return m
}

// Embed returns the bag-of-words vector for text.
func (m *MockProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	if err := ctx.Err(); err != nil {
		return Embedding{}, err
	}
	input, err := prepareInput(text)
	if err != nil {
		return Embedding{}, err
	}
	m.calls.Add(1)

	vec := make([]float32, m.dimensions)
	words := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(m.dimensions)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return Embedding{Vector: vec}, nil
}

// EmbedBatch embeds each text in order and counts one batch.
func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	if _, err := prepareInputs(texts); err != nil {
		return nil, err
	}
	m.batches.Add(1)

	embs := make([]Embedding, len(texts))
	for i, text := range texts {
		emb, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embs[i] = emb
	}
	return embs, nil
}

// ModelName returns the reported model name.
func (m *MockProvider) ModelName() string {
	return m.model
}

// Dimensions returns the vector dimensions.
func (m *MockProvider) Dimensions() int {
	return m.dimensions
}

// Calls returns how many texts were embedded.
func (m *MockProvider) Calls() int64 {
	return m.calls.Load()
}

// Batches returns how many EmbedBatch calls were made.
func (m *MockProvider) Batches() int64 {
	return m.batches.Load()
}
