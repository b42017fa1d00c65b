// ABOUTME: Chunk represents a hierarchical text fragment of an ingested document
// ABOUTME: Supports document → paragraph → sentence chunking hierarchy
package models

// ChunkType represents the level in the chunking hierarchy
type ChunkType string

const (
	ChunkTypeDocument  ChunkType = "DOCUMENT"
	ChunkTypeParagraph ChunkType = "PARAGRAPH"
	ChunkTypeSentence  ChunkType = "SENTENCE"
)

// IsValid checks if the chunk type is one of the known levels
func (c ChunkType) IsValid() bool {
	switch c {
	case ChunkTypeDocument, ChunkTypeParagraph, ChunkTypeSentence:
		return true
	default:
		return false
	}
}

// Chunk represents a hierarchical piece of a document for embedding
type Chunk struct {
	ChunkID       string    `json:"chunk_id"`
	ChunkType     ChunkType `json:"chunk_type"`
	Content       string    `json:"content"`
	ParentChunkID string    `json:"parent_chunk_id,omitempty"`
	DocumentID    string    `json:"document_id"`
}
