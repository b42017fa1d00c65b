// ABOUTME: Session storage operations for SQLite
// ABOUTME: Implements upsert, lookup and listing of conversation summaries
package sqlite

import (
	"database/sql"

	"github.com/harper/tutor/internal/models"
)

// SessionStore handles session persistence
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a new SessionStore
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// Save saves or updates a session summary (upsert)
func (s *SessionStore) Save(rec *models.SessionRecord) error {
	return s.save(s.db, rec)
}

func (s *SessionStore) save(ex execer, rec *models.SessionRecord) error {
	_, err := ex.Exec(`
		INSERT INTO sessions (id, title, last_topic, status, user_turns, turn_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			last_topic = excluded.last_topic,
			status = excluded.status,
			user_turns = excluded.user_turns,
			turn_count = excluded.turn_count,
			updated_at = excluded.updated_at
	`, rec.SessionID, rec.Title, nullString(rec.LastTopic), string(rec.Status),
		rec.UserTurns, rec.TurnCount, rec.CreatedAt, rec.UpdatedAt)
	return err
}

// Get retrieves a session summary by ID (without turns)
func (s *SessionStore) Get(sessionID string) (*models.SessionRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, title, last_topic, status, user_turns, turn_count, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`, sessionID)

	rec, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// List retrieves the most recently updated sessions first
func (s *SessionStore) List(limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, title, last_topic, status, user_turns, turn_count, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []models.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *rec)
	}
	return sessions, rows.Err()
}

// UpdateStatus updates only the status of a session
func (s *SessionStore) UpdateStatus(sessionID string, status models.SessionStatus) error {
	_, err := s.db.Exec(`UPDATE sessions SET status = ? WHERE id = ?`, string(status), sessionID)
	return err
}

// Delete removes a session (turns cascade)
func (s *SessionStore) Delete(sessionID string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", sessionID)
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(sc scanner) (*models.SessionRecord, error) {
	var (
		rec       models.SessionRecord
		title     sql.NullString
		lastTopic sql.NullString
		status    string
	)
	err := sc.Scan(&rec.SessionID, &title, &lastTopic, &status, &rec.UserTurns,
		&rec.TurnCount, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Title = title.String
	rec.LastTopic = lastTopic.String
	rec.Status = models.SessionStatus(status)
	return &rec, nil
}
