// Package config handles file locations and global configuration.
package config

import (
	"os"
	"path/filepath"
)

const (
	DataDir            = "data"
	VectorStoreDir     = "vector_store"
	RawDataFile        = "reviews.csv"
	IndexFile          = "review_index.faiss"
	ProcessedDataFile  = "processed_data.parquet"
	EmbeddingCacheFile = "embedding_cache.db"
)

// Paths holds the on-disk locations used by ingestion and search.
type Paths struct {
	DataDir        string `json:"data_dir"`
	VectorStoreDir string `json:"vector_store_dir"`
}

// DefaultPaths returns the fixed layout relative to the working directory.
func DefaultPaths() Paths {
	return Paths{
		DataDir:        DataDir,
		VectorStoreDir: VectorStoreDir,
	}
}

// RawDataPath returns the path to the raw reviews CSV.
func (p Paths) RawDataPath() string {
	return filepath.Join(p.DataDir, RawDataFile)
}

// IndexPath returns the path to the persisted similarity index.
func (p Paths) IndexPath() string {
	return filepath.Join(p.VectorStoreDir, IndexFile)
}

// TablePath returns the path to the processed review table.
func (p Paths) TablePath() string {
	return filepath.Join(p.VectorStoreDir, ProcessedDataFile)
}

// EmbeddingCachePath returns the path to the SQLite embedding cache.
func (p Paths) EmbeddingCachePath() string {
	return filepath.Join(p.VectorStoreDir, EmbeddingCacheFile)
}

// EnsureVectorStoreDir creates the vector store directory if needed.
func (p Paths) EnsureVectorStoreDir() error {
	return os.MkdirAll(p.VectorStoreDir, 0755)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
