// ABOUTME: Tests for SessionRecord validation and turn bookkeeping
// ABOUTME: Verifies counters follow appended turns
package models

import (
	"strings"
	"testing"
)

func TestSessionRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		record  SessionRecord
		wantErr bool
	}{
		{"valid active", SessionRecord{SessionID: "sess_1", Status: SessionActive}, false},
		{"valid closed", SessionRecord{SessionID: "sess_1", Status: SessionClosed}, false},
		{"missing id", SessionRecord{Status: SessionActive}, true},
		{"bad status", SessionRecord{SessionID: "sess_1", Status: "PAUSED"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionRecord_AddTurns(t *testing.T) {
	rec := &SessionRecord{SessionID: "sess_1", Status: SessionActive}

	rec.AddTurns(
		Turn{UserTurn: 1, Agent: MathExpert, Topic: "pitágoras"},
		Turn{UserTurn: 1, Agent: Finish},
		Turn{UserTurn: 2, Agent: Evaluator},
		Turn{UserTurn: 3, Agent: ExamCreator, Topic: "fracciones", Annotations: []string{AnnotationResponderFailure}},
	)

	if rec.TurnCount != 4 {
		t.Errorf("TurnCount = %d, want 4", rec.TurnCount)
	}
	if rec.UserTurns != 3 {
		t.Errorf("UserTurns = %d, want 3", rec.UserTurns)
	}
	if rec.LastTopic != "pitágoras" {
		t.Errorf("LastTopic = %q, want %q", rec.LastTopic, "pitágoras")
	}
	if rec.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if !strings.HasPrefix(a, "sess_") {
		t.Errorf("NewSessionID() = %q, should start with 'sess_'", a)
	}
	if a == b {
		t.Error("NewSessionID() should be unique")
	}
}
