package semantic

import (
	"fmt"
	"math"
	"sort"
)

// L2Distance computes the Euclidean distance between two vectors of equal length.
func L2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Search returns up to k entries nearest to query, closest first.
// Equal distances are ordered by ascending id.
func (idx *Index) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != idx.Dimensions {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), idx.Dimensions)
	}

	hits := make([]Hit, len(idx.IDs))
	for i, vec := range idx.Vectors {
		hits[i] = Hit{ID: idx.IDs[i], Distance: L2Distance(query, vec)}
	}

	return topK(hits, k), nil
}

// FindSimilar returns up to k reviews nearest to an indexed review.
// The source review is excluded from results.
func (idx *Index) FindSimilar(id int64, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	source, exists := idx.Vector(id)
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrReviewNotIndexed, id)
	}

	hits := make([]Hit, 0, len(idx.IDs))
	for i, vec := range idx.Vectors {
		if idx.IDs[i] == id {
			continue
		}
		hits = append(hits, Hit{ID: idx.IDs[i], Distance: L2Distance(source, vec)})
	}

	return topK(hits, k), nil
}

func topK(hits []Hit, k int) []Hit {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
