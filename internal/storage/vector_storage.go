// ABOUTME: Vector storage with Charm KV backend and cosine similarity search
// ABOUTME: Stores chunk embeddings in Charm KV for cloud-synced retrieval
package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/harper/tutor/internal/charm"
	"github.com/harper/tutor/internal/models"
	"github.com/harper/tutor/internal/util"
)

// KV is the subset of the charm client the KV-backed stores need
type KV interface {
	SetJSON(key string, value interface{}) error
	GetJSON(key string, dest interface{}) error
	ListKeys(prefix string) ([]string, error)
	Delete(key string) error
}

// VectorStorage manages embedding storage and similarity search using Charm KV
type VectorStorage struct {
	kv KV
}

// NewVectorStorage creates a new VectorStorage instance with a KV backend
func NewVectorStorage(kv KV) *VectorStorage {
	return &VectorStorage{kv: kv}
}

// SaveEmbedding saves an embedding vector to Charm KV
func (vs *VectorStorage) SaveEmbedding(chunkID, documentID string, vector []float64) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty embedding for chunk %s", chunkID)
	}

	embedding := models.Embedding{
		ChunkID:    chunkID,
		DocumentID: documentID,
		Vector:     vector,
		CreatedAt:  time.Now(),
	}

	return vs.kv.SetJSON(charm.EmbeddingKey(chunkID), embedding)
}

// SearchVectors performs cosine similarity search across all stored embeddings
func (vs *VectorStorage) SearchVectors(queryVector []float64, maxResults int) ([]models.VectorSearchResult, error) {
	var allResults []models.VectorSearchResult

	keys, err := vs.kv.ListKeys(charm.EmbeddingPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedding keys: %w", err)
	}

	for _, key := range keys {
		var emb models.Embedding
		if err := vs.kv.GetJSON(key, &emb); err != nil {
			continue
		}

		allResults = append(allResults, models.VectorSearchResult{
			ChunkID:         emb.ChunkID,
			DocumentID:      emb.DocumentID,
			SimilarityScore: util.CosineSimilarity(queryVector, emb.Vector),
		})
	}

	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].SimilarityScore > allResults[j].SimilarityScore
	})

	if len(allResults) > maxResults {
		allResults = allResults[:maxResults]
	}

	return allResults, nil
}
