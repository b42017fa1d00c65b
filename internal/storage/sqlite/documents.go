// ABOUTME: Document and chunk storage operations for SQLite
// ABOUTME: Stores ingested study material and its chunk hierarchy, with keyword search
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/harper/tutor/internal/models"
)

// DocumentStore handles document and chunk persistence
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Save stores a document and its chunks in a single transaction
func (s *DocumentStore) Save(doc *models.Document, chunks []models.Chunk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO documents (id, source, title, content, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			title = excluded.title,
			content = excluded.content
	`, doc.DocumentID, doc.Source, nullString(doc.Title), doc.Content, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	for i, chunk := range chunks {
		if !chunk.ChunkType.IsValid() {
			return fmt.Errorf("chunk %s: invalid type %q", chunk.ChunkID, chunk.ChunkType)
		}
		_, err = tx.Exec(`
			INSERT INTO chunks (id, document_id, parent_id, chunk_type, content, position)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				content = excluded.content,
				position = excluded.position
		`, chunk.ChunkID, doc.DocumentID, nullString(chunk.ParentChunkID), string(chunk.ChunkType), chunk.Content, i)
		if err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", chunk.ChunkID, err)
		}
	}

	return tx.Commit()
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(documentID string) (*models.Document, error) {
	var (
		doc   models.Document
		title sql.NullString
	)
	err := s.db.QueryRow(`
		SELECT id, source, title, content, created_at
		FROM documents
		WHERE id = ?
	`, documentID).Scan(&doc.DocumentID, &doc.Source, &title, &doc.Content, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc.Title = title.String
	return &doc, nil
}

// List retrieves all documents, newest first
func (s *DocumentStore) List() ([]models.Document, error) {
	rows, err := s.db.Query(`
		SELECT id, source, title, content, created_at
		FROM documents
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var docs []models.Document
	for rows.Next() {
		var (
			doc   models.Document
			title sql.NullString
		)
		if err := rows.Scan(&doc.DocumentID, &doc.Source, &title, &doc.Content, &doc.CreatedAt); err != nil {
			return nil, err
		}
		doc.Title = title.String
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// GetChunks retrieves all chunks of a document in insertion order
func (s *DocumentStore) GetChunks(documentID string) ([]models.Chunk, error) {
	rows, err := s.db.Query(`
		SELECT id, document_id, parent_id, chunk_type, content
		FROM chunks
		WHERE document_id = ?
		ORDER BY position ASC
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanChunks(rows)
}

// GetChunk retrieves a single chunk by ID
func (s *DocumentStore) GetChunk(chunkID string) (*models.Chunk, error) {
	var (
		chunk     models.Chunk
		parentID  sql.NullString
		chunkType string
	)
	err := s.db.QueryRow(`
		SELECT id, document_id, parent_id, chunk_type, content
		FROM chunks
		WHERE id = ?
	`, chunkID).Scan(&chunk.ChunkID, &chunk.DocumentID, &parentID, &chunkType, &chunk.Content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	chunk.ParentChunkID = parentID.String
	chunk.ChunkType = models.ChunkType(chunkType)
	return &chunk, nil
}

// SearchKeyword returns paragraph chunks containing every query term,
// scored by the fraction of terms that appear.
func (s *DocumentStore) SearchKeyword(query string, maxResults int) ([]models.Passage, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 || maxResults <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT c.id, d.source, c.content
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.chunk_type = ?
		ORDER BY d.created_at DESC, c.position ASC
	`, string(models.ChunkTypeParagraph))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var passages []models.Passage
	for rows.Next() {
		var p models.Passage
		if err := rows.Scan(&p.ID, &p.Source, &p.Content); err != nil {
			return nil, err
		}
		lower := strings.ToLower(p.Content)
		hits := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		p.Score = float64(hits) / float64(len(terms))
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rankPassages(passages, maxResults), nil
}

// Delete removes a document (chunks and embeddings cascade)
func (s *DocumentStore) Delete(documentID string) error {
	_, err := s.db.Exec("DELETE FROM documents WHERE id = ?", documentID)
	return err
}

func scanChunks(rows *sql.Rows) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for rows.Next() {
		var (
			chunk     models.Chunk
			parentID  sql.NullString
			chunkType string
		)
		if err := rows.Scan(&chunk.ChunkID, &chunk.DocumentID, &parentID, &chunkType, &chunk.Content); err != nil {
			return nil, err
		}
		chunk.ParentChunkID = parentID.String
		chunk.ChunkType = models.ChunkType(chunkType)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
