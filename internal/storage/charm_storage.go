// ABOUTME: Charm KV implementation of the transcript and passage stores
// ABOUTME: Sessions, turns, documents and chunks are JSON values under typed key prefixes
package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harper/tutor/internal/charm"
	"github.com/harper/tutor/internal/models"
)

// CharmStorage stores tutor data in a Charm KV database
type CharmStorage struct {
	kv      KV
	vectors *VectorStorage
	closer  func() error
	mu      sync.RWMutex
}

// NewCharmStorage wraps a charm client
func NewCharmStorage(client *charm.Client) *CharmStorage {
	s := NewKVStorage(client)
	s.closer = client.Close
	return s
}

// NewKVStorage builds a CharmStorage over any KV implementation
func NewKVStorage(kv KV) *CharmStorage {
	return &CharmStorage{
		kv:      kv,
		vectors: NewVectorStorage(kv),
	}
}

// Close closes the underlying client
func (s *CharmStorage) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// SaveTurns stores the turns of one user turn and updates the session summary
func (s *CharmStorage) SaveTurns(sessionID string, turns []models.Turn) error {
	if sessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if len(turns) == 0 {
		return nil
	}
	for _, turn := range turns {
		if turn.SessionID != "" && turn.SessionID != sessionID {
			return fmt.Errorf("turn %s belongs to session %s, not %s", turn.TurnID, turn.SessionID, sessionID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getSession(sessionID)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &models.SessionRecord{
			SessionID: sessionID,
			Title:     firstLine(turns[0].Utterance),
			Status:    models.SessionActive,
			CreatedAt: time.Now().UTC(),
		}
	}

	for _, turn := range turns {
		turn.SessionID = sessionID
		if err := s.kv.SetJSON(charm.TurnKey(sessionID, turn.UserTurn, turn.Cycle), turn); err != nil {
			return fmt.Errorf("failed to save turn %s: %w", turn.TurnID, err)
		}
	}

	rec.AddTurns(turns...)
	keys, err := s.kv.ListKeys(charm.TurnSessionPrefix(sessionID))
	if err != nil {
		return fmt.Errorf("failed to count turns: %w", err)
	}
	rec.TurnCount = len(keys)
	rec.Turns = nil

	return s.kv.SetJSON(charm.SessionKey(sessionID), rec)
}

// LoadSession retrieves a session with its turns, or nil if unknown
func (s *CharmStorage) LoadSession(sessionID string) (*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.getSession(sessionID)
	if err != nil || rec == nil {
		return rec, err
	}

	keys, err := s.kv.ListKeys(charm.TurnSessionPrefix(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	sort.Strings(keys)

	rec.Turns = make([]models.Turn, 0, len(keys))
	for _, key := range keys {
		var turn models.Turn
		if err := s.kv.GetJSON(key, &turn); err != nil {
			return nil, fmt.Errorf("failed to load turn %s: %w", key, err)
		}
		rec.Turns = append(rec.Turns, turn)
	}
	return rec, nil
}

// ListSessions lists session summaries, most recent first (limit <= 0 means all)
func (s *CharmStorage) ListSessions(limit int) ([]models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.kv.ListKeys(charm.SessionPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var sessions []models.SessionRecord
	for _, key := range keys {
		var rec models.SessionRecord
		if err := s.kv.GetJSON(key, &rec); err != nil {
			continue
		}
		sessions = append(sessions, rec)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// SaveDocument stores a document and its chunks
func (s *CharmStorage) SaveDocument(doc *models.Document, chunks []models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		if !chunk.ChunkType.IsValid() {
			return fmt.Errorf("chunk %s: invalid type %q", chunk.ChunkID, chunk.ChunkType)
		}
	}
	if err := s.kv.SetJSON(charm.DocumentKey(doc.DocumentID), doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	for _, chunk := range chunks {
		chunk.DocumentID = doc.DocumentID
		if err := s.kv.SetJSON(charm.ChunkKey(chunk.ChunkID), chunk); err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", chunk.ChunkID, err)
		}
	}
	return nil
}

// SaveEmbedding stores the embedding of a chunk
func (s *CharmStorage) SaveEmbedding(chunkID, documentID string, vector []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vectors.SaveEmbedding(chunkID, documentID, vector)
}

// SearchSimilar returns the chunks closest to the query vector as passages
func (s *CharmStorage) SearchSimilar(vector []float64, maxResults int) ([]models.Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.vectors.SearchVectors(vector, maxResults)
	if err != nil {
		return nil, err
	}

	passages := make([]models.Passage, 0, len(results))
	for _, r := range results {
		var chunk models.Chunk
		if err := s.kv.GetJSON(charm.ChunkKey(r.ChunkID), &chunk); err != nil {
			continue
		}
		passages = append(passages, models.Passage{
			ID:      chunk.ChunkID,
			Source:  s.documentSource(chunk.DocumentID),
			Content: chunk.Content,
			Score:   r.SimilarityScore,
		})
	}
	return passages, nil
}

// SearchKeyword scans paragraph chunks for the query terms
func (s *CharmStorage) SearchKeyword(query string, maxResults int) ([]models.Passage, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 || maxResults <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.kv.ListKeys(charm.ChunkPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	sort.Strings(keys)

	var passages []models.Passage
	for _, key := range keys {
		var chunk models.Chunk
		if err := s.kv.GetJSON(key, &chunk); err != nil || chunk.ChunkType != models.ChunkTypeParagraph {
			continue
		}
		lower := strings.ToLower(chunk.Content)
		hits := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		passages = append(passages, models.Passage{
			ID:      chunk.ChunkID,
			Source:  s.documentSource(chunk.DocumentID),
			Content: chunk.Content,
			Score:   float64(hits) / float64(len(terms)),
		})
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	if len(passages) > maxResults {
		passages = passages[:maxResults]
	}
	return passages, nil
}

func (s *CharmStorage) getSession(sessionID string) (*models.SessionRecord, error) {
	key := charm.SessionKey(sessionID)
	keys, err := s.kv.ListKeys(key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	found := false
	for _, k := range keys {
		if k == key {
			found = true
			break
		}
	}
	if !found {
		return nil, nil
	}

	var rec models.SessionRecord
	if err := s.kv.GetJSON(key, &rec); err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &rec, nil
}

func (s *CharmStorage) documentSource(documentID string) string {
	var doc models.Document
	if err := s.kv.GetJSON(charm.DocumentKey(documentID), &doc); err != nil {
		return ""
	}
	return doc.Source
}

func firstLine(utterance string) string {
	title := strings.Join(strings.Fields(utterance), " ")
	if r := []rune(title); len(r) > 60 {
		return string(r[:60]) + "..."
	}
	return title
}
