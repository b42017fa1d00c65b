// ABOUTME: Turn storage operations for SQLite
// ABOUTME: Persists committed dispatch cycles in session order
package sqlite

import (
	"database/sql"
	"encoding/json"

	"github.com/harper/tutor/internal/models"
)

// TurnStore handles turn persistence
type TurnStore struct {
	db *DB
}

// NewTurnStore creates a new TurnStore
func NewTurnStore(db *DB) *TurnStore {
	return &TurnStore{db: db}
}

// Save saves a turn
func (s *TurnStore) Save(turn *models.Turn) error {
	return s.save(s.db, turn)
}

func (s *TurnStore) save(ex execer, turn *models.Turn) error {
	annotationsJSON, err := json.Marshal(turn.Annotations)
	if err != nil {
		return err
	}

	_, err = ex.Exec(`
		INSERT INTO turns (id, session_id, user_turn, cycle, utterance, agent, rationale, artifact, satisfied, topic, summary, annotations, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, turn.TurnID, turn.SessionID, turn.UserTurn, turn.Cycle, turn.Utterance, string(turn.Agent),
		nullString(turn.Rationale), nullString(turn.Artifact), turn.Satisfied,
		nullString(turn.Topic), nullString(turn.Summary), string(annotationsJSON), turn.Timestamp)

	return err
}

// GetBySession retrieves all turns of a session in chronological order
func (s *TurnStore) GetBySession(sessionID string) ([]models.Turn, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, user_turn, cycle, utterance, agent, rationale, artifact, satisfied, topic, summary, annotations, created_at
		FROM turns
		WHERE session_id = ?
		ORDER BY user_turn ASC, cycle ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var turns []models.Turn
	for rows.Next() {
		var (
			turn            models.Turn
			agent           string
			rationale       sql.NullString
			artifact        sql.NullString
			topic           sql.NullString
			summary         sql.NullString
			annotationsJSON sql.NullString
		)

		err := rows.Scan(&turn.TurnID, &turn.SessionID, &turn.UserTurn, &turn.Cycle, &turn.Utterance,
			&agent, &rationale, &artifact, &turn.Satisfied, &topic, &summary, &annotationsJSON, &turn.Timestamp)
		if err != nil {
			return nil, err
		}

		turn.Agent = models.Agent(agent)
		turn.Rationale = rationale.String
		turn.Artifact = artifact.String
		turn.Topic = topic.String
		turn.Summary = summary.String

		if annotationsJSON.Valid && annotationsJSON.String != "" && annotationsJSON.String != "null" {
			if err := json.Unmarshal([]byte(annotationsJSON.String), &turn.Annotations); err != nil {
				turn.Annotations = nil
			}
		}

		turns = append(turns, turn)
	}

	return turns, rows.Err()
}

// CountBySession returns the number of stored turns of a session
func (s *TurnStore) CountBySession(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM turns WHERE session_id = ?", sessionID).Scan(&n)
	return n, err
}
