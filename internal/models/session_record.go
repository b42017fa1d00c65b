// ABOUTME: SessionRecord is the persisted summary of one tutoring conversation
// ABOUTME: Used by history listing and transcript export
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a persisted session
type SessionStatus string

const (
	SessionActive SessionStatus = "ACTIVE"
	SessionClosed SessionStatus = "CLOSED"
)

// SessionRecord summarizes a conversation for listing and export
type SessionRecord struct {
	SessionID string        `json:"session_id" yaml:"session_id"`
	Title     string        `json:"title" yaml:"title"`
	LastTopic string        `json:"last_topic,omitempty" yaml:"last_topic,omitempty"`
	Status    SessionStatus `json:"status" yaml:"status"`
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" yaml:"updated_at"`
	UserTurns int           `json:"user_turns" yaml:"user_turns"`
	TurnCount int           `json:"turn_count" yaml:"turn_count"`
	Turns     []Turn        `json:"turns,omitempty" yaml:"turns,omitempty"`
}

// NewSessionID generates a session identifier
func NewSessionID() string {
	return fmt.Sprintf("sess_%s_%s", time.Now().Format("20060102_150405"), uuid.New().String()[:8])
}

// Validate checks if the SessionRecord has valid data
func (s *SessionRecord) Validate() error {
	if s.SessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if s.Status != SessionActive && s.Status != SessionClosed {
		return fmt.Errorf("invalid status %q", s.Status)
	}
	return nil
}

// AddTurns appends recorded turns and updates the counters
func (s *SessionRecord) AddTurns(turns ...Turn) {
	for _, t := range turns {
		s.Turns = append(s.Turns, t)
		if t.UserTurn > s.UserTurns {
			s.UserTurns = t.UserTurn
		}
		if t.Topic != "" && t.UpdatesFlags() {
			s.LastTopic = t.Topic
		}
	}
	s.TurnCount = len(s.Turns)
	s.UpdatedAt = time.Now().UTC()
}
