// ABOUTME: Embedding storage operations for SQLite
// ABOUTME: Implements vector storage as BLOB and cosine similarity search over chunks
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/harper/tutor/internal/models"
	"github.com/harper/tutor/internal/util"
)

// EmbeddingStore handles embedding persistence
type EmbeddingStore struct {
	db *DB
}

// NewEmbeddingStore creates a new EmbeddingStore
func NewEmbeddingStore(db *DB) *EmbeddingStore {
	return &EmbeddingStore{db: db}
}

// ExpectedDimension is the expected vector dimension for OpenAI embeddings
const ExpectedDimension = 1536

// Save saves an embedding vector (validates 1536 dimension)
func (s *EmbeddingStore) Save(chunkID, documentID string, vector []float64) error {
	return s.SaveWithDimension(chunkID, documentID, vector, ExpectedDimension)
}

// SaveWithDimension saves an embedding vector with custom dimension (for testing)
func (s *EmbeddingStore) SaveWithDimension(chunkID, documentID string, vector []float64, expectedDim int) error {
	if len(vector) != expectedDim {
		return fmt.Errorf("invalid embedding dimension: expected %d, got %d", expectedDim, len(vector))
	}

	_, err := s.db.Exec(`
		INSERT INTO embeddings (id, chunk_id, document_id, vector, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vector = excluded.vector,
			document_id = excluded.document_id
	`, fmt.Sprintf("emb_%s", chunkID), chunkID, nullString(documentID), vectorToBlob(vector), time.Now())

	return err
}

// GetByChunkID retrieves an embedding by chunk ID
func (s *EmbeddingStore) GetByChunkID(chunkID string) (*models.Embedding, error) {
	var (
		emb        models.Embedding
		documentID sql.NullString
		blob       []byte
	)

	err := s.db.QueryRow(`
		SELECT chunk_id, document_id, vector, created_at
		FROM embeddings
		WHERE chunk_id = ?
	`, chunkID).Scan(&emb.ChunkID, &documentID, &blob, &emb.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	emb.DocumentID = documentID.String
	emb.Vector = blobToVector(blob)

	return &emb, nil
}

// Count returns the number of stored embeddings
func (s *EmbeddingStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM embeddings").Scan(&n)
	return n, err
}

// SearchSimilar performs cosine similarity search
func (s *EmbeddingStore) SearchSimilar(queryVector []float64, maxResults int) ([]models.VectorSearchResult, error) {
	rows, err := s.db.Query(`
		SELECT chunk_id, document_id, vector
		FROM embeddings
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []models.VectorSearchResult

	for rows.Next() {
		var (
			chunkID    string
			documentID sql.NullString
			blob       []byte
		)

		if err := rows.Scan(&chunkID, &documentID, &blob); err != nil {
			return nil, err
		}

		results = append(results, models.VectorSearchResult{
			ChunkID:         chunkID,
			DocumentID:      documentID.String,
			SimilarityScore: util.CosineSimilarity(queryVector, blobToVector(blob)),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})

	if len(results) > maxResults {
		results = results[:maxResults]
	}

	return results, nil
}

// Delete removes an embedding by chunk ID
func (s *EmbeddingStore) Delete(chunkID string) error {
	_, err := s.db.Exec("DELETE FROM embeddings WHERE chunk_id = ?", chunkID)
	return err
}

// vectorToBlob converts a float64 slice to binary blob
func vectorToBlob(vector []float64) []byte {
	blob := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to float64 slice
func blobToVector(blob []byte) []float64 {
	count := len(blob) / 8
	vector := make([]float64, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint64(blob[i*8:])
		vector[i] = math.Float64frombits(bits)
	}
	return vector
}
