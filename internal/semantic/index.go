package semantic

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Errors returned by index operations.
var (
	ErrIndexNotFound      = errors.New("similarity index not found")
	ErrReviewNotIndexed   = errors.New("review not in similarity index")
	ErrUnsupportedVersion = errors.New("unsupported index version")
	ErrDimensionMismatch  = errors.New("vector dimension mismatch")
	ErrDuplicateID        = errors.New("duplicate review id")
	ErrInvalidK           = errors.New("k must be positive")
)

// CurrentIndexVersion is the format version for compatibility checking.
// Increment this when making breaking changes to the index format.
const CurrentIndexVersion = 1

// NewIndex creates a new empty index.
func NewIndex(modelName string, dimensions int) *Index {
	return &Index{
		Version:    CurrentIndexVersion,
		ModelName:  modelName,
		Dimensions: dimensions,
		CreatedAt:  time.Now(),
		pos:        make(map[int64]int),
	}
}

// Add inserts the vector for a review id.
func (idx *Index) Add(id int64, vector []float32) error {
	if len(vector) != idx.Dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), idx.Dimensions)
	}
	if _, exists := idx.pos[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	idx.pos[id] = len(idx.IDs)
	idx.IDs = append(idx.IDs, id)
	idx.Vectors = append(idx.Vectors, vector)
	idx.EntryCount = len(idx.IDs)
	return nil
}

// Len returns the number of vectors in the index.
func (idx *Index) Len() int {
	return len(idx.IDs)
}

// Has checks if a review is in the index.
func (idx *Index) Has(id int64) bool {
	_, exists := idx.pos[id]
	return exists
}

// Vector returns the stored vector for a review id.
func (idx *Index) Vector(id int64) ([]float32, bool) {
	i, exists := idx.pos[id]
	if !exists {
		return nil, false
	}
	return idx.Vectors[i], true
}

// Save persists the index to path using GOB encoding.
// The file is written to a temp path and renamed into place.
func (idx *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(idx); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("encoding index: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// Load reads an index from path.
// Returns ErrIndexNotFound if the file is absent and ErrUnsupportedVersion
// if it was written by an incompatible format.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrIndexNotFound
		}
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()

	var idx Index
	if err := gob.NewDecoder(f).Decode(&idx); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}

	if idx.Version != CurrentIndexVersion {
		return nil, fmt.Errorf("%w: got %d, want %d (rebuild with 'rvs ingest')",
			ErrUnsupportedVersion, idx.Version, CurrentIndexVersion)
	}
	if len(idx.IDs) != len(idx.Vectors) {
		return nil, fmt.Errorf("decoding index: %d ids but %d vectors", len(idx.IDs), len(idx.Vectors))
	}

	idx.pos = make(map[int64]int, len(idx.IDs))
	for i, id := range idx.IDs {
		if _, exists := idx.pos[id]; exists {
			return nil, fmt.Errorf("decoding index: %w: %d", ErrDuplicateID, id)
		}
		if len(idx.Vectors[i]) != idx.Dimensions {
			return nil, fmt.Errorf("decoding index: %w for id %d", ErrDimensionMismatch, id)
		}
		idx.pos[id] = i
	}
	idx.EntryCount = len(idx.IDs)

	return &idx, nil
}

// FileSize returns the size of the index file in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrIndexNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}

// Exists checks if the index file exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
