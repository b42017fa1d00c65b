// ABOUTME: Backend-agnostic storage interfaces for transcripts and passages
// ABOUTME: Open selects the SQLite or Charm KV backend from configuration
package storage

import (
	"fmt"

	"github.com/harper/tutor/internal/charm"
	"github.com/harper/tutor/internal/models"
	"github.com/harper/tutor/internal/storage/sqlite"
)

// Backend names accepted by Open
const (
	BackendSQLite = "sqlite"
	BackendCharm  = "charm"
)

// TranscriptStore persists committed session turns
type TranscriptStore interface {
	SaveTurns(sessionID string, turns []models.Turn) error
	// LoadSession returns nil, nil for an unknown session
	LoadSession(sessionID string) (*models.SessionRecord, error)
	ListSessions(limit int) ([]models.SessionRecord, error)
}

// PassageStore holds ingested documents and serves retrieval
type PassageStore interface {
	SaveDocument(doc *models.Document, chunks []models.Chunk) error
	SaveEmbedding(chunkID, documentID string, vector []float64) error
	SearchSimilar(vector []float64, maxResults int) ([]models.Passage, error)
	SearchKeyword(query string, maxResults int) ([]models.Passage, error)
}

// Store is a complete storage backend
type Store interface {
	TranscriptStore
	PassageStore
	Close() error
}

// Config selects and configures a backend
type Config struct {
	Backend string
	DBPath  string
	Charm   *charm.Config
}

// Open opens the configured backend
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendSQLite:
		path := cfg.DBPath
		if path == "" {
			path = sqlite.DefaultDBPath()
		}
		return sqlite.NewStorageWithPath(path)
	case BackendCharm:
		charmCfg := cfg.Charm
		if charmCfg == nil {
			charmCfg = charm.DefaultConfig()
		}
		client, err := charm.NewClient(charmCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open charm backend: %w", err)
		}
		return NewCharmStorage(client), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

var (
	_ Store = (*sqlite.Storage)(nil)
	_ Store = (*CharmStorage)(nil)
)
