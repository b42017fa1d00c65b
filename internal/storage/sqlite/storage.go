// ABOUTME: Unified Storage layer that wraps all SQLite stores
// ABOUTME: Persists session transcripts and serves passage search for the retriever
package sqlite

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harper/tutor/internal/models"
)

// titleMaxRunes bounds the session title derived from the first utterance
const titleMaxRunes = 60

// Storage manages all persistent tutor data using SQLite
type Storage struct {
	db         *DB
	sessions   *SessionStore
	turns      *TurnStore
	documents  *DocumentStore
	embeddings *EmbeddingStore
	mu         sync.RWMutex
}

// NewStorage initializes storage with SQLite backend
func NewStorage() (*Storage, error) {
	return NewStorageWithPath(DefaultDBPath())
}

// NewStorageWithPath initializes storage with a custom database path
func NewStorageWithPath(dbPath string) (*Storage, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStorage(db), nil
}

// NewStorageInMemory creates an in-memory storage (for testing)
func NewStorageInMemory() (*Storage, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return newStorage(db), nil
}

func newStorage(db *DB) *Storage {
	return &Storage{
		db:         db,
		sessions:   NewSessionStore(db),
		turns:      NewTurnStore(db),
		documents:  NewDocumentStore(db),
		embeddings: NewEmbeddingStore(db),
	}
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- Transcript operations ---

// SaveTurns persists the committed turns of one user turn and updates the
// session summary. All turns are written in a single transaction.
func (s *Storage) SaveTurns(sessionID string, turns []models.Turn) error {
	if sessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if len(turns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.sessions.Get(sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	now := time.Now().UTC()
	if rec == nil {
		rec = &models.SessionRecord{
			SessionID: sessionID,
			Title:     deriveTitle(turns[0].Utterance),
			Status:    models.SessionActive,
			CreatedAt: now,
		}
	}

	for _, turn := range turns {
		if turn.UserTurn > rec.UserTurns {
			rec.UserTurns = turn.UserTurn
		}
		if turn.Topic != "" && turn.UpdatesFlags() {
			rec.LastTopic = turn.Topic
		}
	}
	rec.UpdatedAt = now

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Session row first: turns reference it.
	if err := s.sessions.save(tx, rec); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	for i := range turns {
		turn := turns[i]
		if turn.SessionID == "" {
			turn.SessionID = sessionID
		}
		if turn.SessionID != sessionID {
			return fmt.Errorf("turn %s belongs to session %s, not %s", turn.TurnID, turn.SessionID, sessionID)
		}
		if err := s.turns.save(tx, &turn); err != nil {
			return fmt.Errorf("failed to save turn %s: %w", turn.TurnID, err)
		}
	}

	if err := tx.QueryRow("SELECT COUNT(*) FROM turns WHERE session_id = ?", sessionID).Scan(&rec.TurnCount); err != nil {
		return fmt.Errorf("failed to count turns: %w", err)
	}
	if _, err := tx.Exec("UPDATE sessions SET turn_count = ? WHERE id = ?", rec.TurnCount, sessionID); err != nil {
		return fmt.Errorf("failed to update turn count: %w", err)
	}

	return tx.Commit()
}

// LoadSession retrieves a session summary with its turns, or nil if unknown
func (s *Storage) LoadSession(sessionID string) (*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.sessions.Get(sessionID)
	if err != nil || rec == nil {
		return rec, err
	}
	turns, err := s.turns.GetBySession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	rec.Turns = turns
	return rec, nil
}

// ListSessions lists session summaries, most recent first (limit <= 0 means all)
func (s *Storage) ListSessions(limit int) ([]models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions.List(limit)
}

// CloseSession marks a session as closed
func (s *Storage) CloseSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.UpdateStatus(sessionID, models.SessionClosed)
}

// DeleteSession deletes a session and its turns
func (s *Storage) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Delete(sessionID)
}

// --- Passage operations ---

// SaveDocument stores an ingested document with its chunks
func (s *Storage) SaveDocument(doc *models.Document, chunks []models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documents.Save(doc, chunks)
}

// ListDocuments lists all ingested documents
func (s *Storage) ListDocuments() ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documents.List()
}

// SaveEmbedding stores the embedding vector of a chunk. Any dimension is
// accepted as long as it matches the rest of the index.
func (s *Storage) SaveEmbedding(chunkID, documentID string, vector []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embeddings.SaveWithDimension(chunkID, documentID, vector, len(vector))
}

// SearchSimilar returns the chunks closest to the query vector as passages
func (s *Storage) SearchSimilar(vector []float64, maxResults int) ([]models.Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.embeddings.SearchSimilar(vector, maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar: %w", err)
	}

	sources := make(map[string]string)
	passages := make([]models.Passage, 0, len(results))
	for _, r := range results {
		chunk, err := s.documents.GetChunk(r.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("failed to load chunk %s: %w", r.ChunkID, err)
		}
		if chunk == nil {
			continue
		}
		source, ok := sources[chunk.DocumentID]
		if !ok {
			doc, err := s.documents.Get(chunk.DocumentID)
			if err != nil {
				return nil, fmt.Errorf("failed to load document %s: %w", chunk.DocumentID, err)
			}
			if doc != nil {
				source = doc.Source
			}
			sources[chunk.DocumentID] = source
		}
		passages = append(passages, models.Passage{
			ID:      chunk.ChunkID,
			Source:  source,
			Content: chunk.Content,
			Score:   r.SimilarityScore,
		})
	}
	return passages, nil
}

// SearchKeyword returns paragraph passages that mention the query terms
func (s *Storage) SearchKeyword(query string, maxResults int) ([]models.Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documents.SearchKeyword(query, maxResults)
}

// GetEmbeddingStore returns the underlying embedding store
func (s *Storage) GetEmbeddingStore() *EmbeddingStore {
	return s.embeddings
}

// deriveTitle builds a session title from the opening utterance
func deriveTitle(utterance string) string {
	title := strings.Join(strings.Fields(utterance), " ")
	runes := []rune(title)
	if len(runes) > titleMaxRunes {
		return string(runes[:titleMaxRunes]) + "..."
	}
	return title
}

// rankPassages sorts passages by descending score and keeps the top n
func rankPassages(passages []models.Passage, n int) []models.Passage {
	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	if len(passages) > n {
		passages = passages[:n]
	}
	return passages
}
