// Package semantic provides the flat L2 similarity index over review embeddings.
package semantic

import "time"

// Index holds one vector per review, addressed by the review's explicit id.
// IDs and Vectors are parallel; position carries no meaning outside this package.
type Index struct {
	// Version is the format version for compatibility checking.
	// Check against CurrentIndexVersion when loading.
	Version int `json:"version"`

	ModelName       string    `json:"model_name"`        // e.g., "all-minilm:l6-v2"
	Dimensions      int       `json:"dimensions"`        // 384 for all-minilm
	CreatedAt       time.Time `json:"created_at"`        // When index was built
	EntryCount      int       `json:"entry_count"`       // Number of vectors
	SkippedCount    int       `json:"skipped_count"`     // Rows dropped before embedding
	BuildDurationMs int64     `json:"build_duration_ms"` // Time to build in milliseconds

	IDs     []int64     `json:"-"`
	Vectors [][]float32 `json:"-"`

	pos map[int64]int
}

// Hit is one nearest-neighbor match.
type Hit struct {
	ID       int64   `json:"review_id"`
	Distance float64 `json:"distance"`
}

// BuildStats contains statistics from index building.
type BuildStats struct {
	ReviewsIndexed int           `json:"reviews_indexed"`
	CacheHits      int           `json:"cache_hits"`
	Duration       time.Duration `json:"duration"`
}
