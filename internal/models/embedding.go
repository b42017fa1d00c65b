// ABOUTME: Embedding models for vector storage and semantic passage search
// ABOUTME: Defines Embedding and VectorSearchResult structures
package models

import "time"

// Embedding represents a stored embedding vector for a document chunk
type Embedding struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Vector     []float64 `json:"vector"`
	CreatedAt  time.Time `json:"created_at"`
}

// VectorSearchResult represents a search result with similarity score
type VectorSearchResult struct {
	ChunkID         string  `json:"chunk_id"`
	DocumentID      string  `json:"document_id"`
	SimilarityScore float64 `json:"similarity_score"`
}
