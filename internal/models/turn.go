// ABOUTME: Turn represents one recorded dispatch cycle within a tutoring session
// ABOUTME: Immutable once recorded; carries the routing rationale for debugging
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Annotation values attached to turns to explain recovered conditions
const (
	AnnotationClassifierUnavailable = "classifier_unavailable"
	AnnotationResponderFailure      = "responder_failure"
	AnnotationGuardTriggered        = "guard_triggered"
	AnnotationContextOverride       = "context_override"
	AnnotationTieBreak              = "tie_break"
)

// Turn represents a single dispatch cycle and its result
type Turn struct {
	TurnID      string    `json:"turn_id" yaml:"turn_id"`
	SessionID   string    `json:"session_id" yaml:"session_id"`
	UserTurn    int       `json:"user_turn" yaml:"user_turn"`
	Cycle       int       `json:"cycle" yaml:"cycle"`
	Utterance   string    `json:"utterance" yaml:"utterance"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	Agent       Agent     `json:"agent" yaml:"agent"`
	Rationale   string    `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	Artifact    string    `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Satisfied   bool      `json:"satisfied" yaml:"satisfied"`
	Topic       string    `json:"topic,omitempty" yaml:"topic,omitempty"`
	Summary     string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	Annotations []string  `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// NewTurn creates a new Turn with validation
func NewTurn(utterance string, agent Agent, rationale string) (*Turn, error) {
	if strings.TrimSpace(utterance) == "" {
		return nil, errors.New("utterance cannot be empty")
	}
	if !agent.IsValid() {
		return nil, fmt.Errorf("invalid agent %q", agent)
	}
	return &Turn{
		TurnID:    generateTurnID(),
		Timestamp: time.Now().UTC(),
		Utterance: utterance,
		Agent:     agent,
		Rationale: rationale,
	}, nil
}

// HasAnnotation reports whether the turn carries the given annotation
func (t *Turn) HasAnnotation(a string) bool {
	for _, existing := range t.Annotations {
		if existing == a {
			return true
		}
	}
	return false
}

// UpdatesFlags reports whether the turn is a successful dispatch, the only kind
// that sets last_agent, last_topic and last_summary
func (t *Turn) UpdatesFlags() bool {
	return t.Agent.IsResponder() && !t.HasAnnotation(AnnotationResponderFailure)
}

// generateTurnID generates a unique turn identifier
func generateTurnID() string {
	return fmt.Sprintf("turn_%s_%s", time.Now().Format("20060102_150405"), uuid.New().String()[:8])
}
