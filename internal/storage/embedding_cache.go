package storage

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"
)

// EmbeddingCache stores review embeddings in SQLite keyed by model name and
// the BLAKE2b-256 digest of the text, so a rerun of ingestion only embeds new text.
type EmbeddingCache struct {
	db *sql.DB
}

// OpenEmbeddingCache opens or creates the cache database at path.
func OpenEmbeddingCache(path string) (*EmbeddingCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createCacheSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return &EmbeddingCache{db: db}, nil
}

// Close closes the database connection.
func (c *EmbeddingCache) Close() error {
	return c.db.Close()
}

func createCacheSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS embedding_cache (
			model TEXT NOT NULL,
			text_hash TEXT NOT NULL,
			dimensions INTEGER NOT NULL,
			vector BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (model, text_hash)
		);
	`

	_, err := db.Exec(schema)
	return err
}

// Get returns the cached vector for text under model.
func (c *EmbeddingCache) Get(model, text string) ([]float32, bool, error) {
	var blob []byte
	err := c.db.QueryRow(
		`SELECT vector FROM embedding_cache WHERE model = ? AND text_hash = ?`,
		model, hashText(text),
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying cache: %w", err)
	}

	vec, err := decodeVector(blob)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Put stores vector for text under model, replacing any previous entry.
func (c *EmbeddingCache) Put(model, text string, vector []float32) error {
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO embedding_cache (model, text_hash, dimensions, vector, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		model, hashText(text), len(vector), encodeVector(vector), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Count returns the number of cached vectors for model.
func (c *EmbeddingCache) Count(model string) (int, error) {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM embedding_cache WHERE model = ?`, model).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}

// Clear removes every cached vector.
func (c *EmbeddingCache) Clear() error {
	if _, err := c.db.Exec(`DELETE FROM embedding_cache`); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// hashText returns the hex BLAKE2b-256 digest of text.
func hashText(text string) string {
	return fmt.Sprintf("%x", blake2b.Sum256([]byte(text)))
}

// encodeVector stores float32 values as little-endian IEEE 754 bits.
func encodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
