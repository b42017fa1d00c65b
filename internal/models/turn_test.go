// ABOUTME: Tests for Turn model creation and validation
// ABOUTME: Verifies NewTurn constructor, generated fields, and annotations
package models

import (
	"strings"
	"testing"
)

func TestNewTurn(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		agent     Agent
		rationale string
		wantErr   bool
		errMsg    string
	}{
		{
			name:      "valid math turn",
			utterance: "¿Qué es el teorema de Pitágoras?",
			agent:     MathExpert,
			rationale: "classifier: math_expert",
			wantErr:   false,
		},
		{
			name:      "valid finish turn",
			utterance: "Gracias",
			agent:     Finish,
			wantErr:   false,
		},
		{
			name:      "empty utterance",
			utterance: "",
			agent:     MathExpert,
			wantErr:   true,
			errMsg:    "utterance cannot be empty",
		},
		{
			name:      "whitespace-only utterance",
			utterance: "   \t\n  ",
			agent:     Evaluator,
			wantErr:   true,
			errMsg:    "utterance cannot be empty",
		},
		{
			name:      "invalid agent",
			utterance: "Hola",
			agent:     Agent("student_simulator"),
			wantErr:   true,
			errMsg:    "invalid agent",
		},
		{
			name:      "long utterance",
			utterance: strings.Repeat("derivada ", 500),
			agent:     ExamCreator,
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turn, err := NewTurn(tt.utterance, tt.agent, tt.rationale)

			if (err != nil) != tt.wantErr {
				t.Errorf("NewTurn() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if err != nil {
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("NewTurn() error = %q, want to contain %q", err.Error(), tt.errMsg)
				}
				return
			}

			if turn.Utterance != tt.utterance {
				t.Errorf("Utterance = %q, want %q", turn.Utterance, tt.utterance)
			}
			if turn.Agent != tt.agent {
				t.Errorf("Agent = %q, want %q", turn.Agent, tt.agent)
			}
			if turn.Rationale != tt.rationale {
				t.Errorf("Rationale = %q, want %q", turn.Rationale, tt.rationale)
			}
			if !strings.HasPrefix(turn.TurnID, "turn_") {
				t.Errorf("TurnID = %q, should start with 'turn_'", turn.TurnID)
			}
			if turn.Timestamp.IsZero() {
				t.Error("Timestamp should be set")
			}
		})
	}
}

func TestNewTurn_UniqueIDs(t *testing.T) {
	ids := make(map[string]bool)

	for i := 0; i < 10; i++ {
		turn, err := NewTurn("message", MathExpert, "")
		if err != nil {
			t.Fatalf("NewTurn() error = %v", err)
		}

		if ids[turn.TurnID] {
			t.Errorf("Duplicate TurnID generated: %s", turn.TurnID)
		}
		ids[turn.TurnID] = true
	}
}

func TestTurn_HasAnnotation(t *testing.T) {
	turn := Turn{
		TurnID:      "turn_manual",
		Annotations: []string{AnnotationClassifierUnavailable, AnnotationTieBreak},
	}

	if !turn.HasAnnotation(AnnotationClassifierUnavailable) {
		t.Error("expected classifier_unavailable annotation")
	}
	if !turn.HasAnnotation(AnnotationTieBreak) {
		t.Error("expected tie_break annotation")
	}
	if turn.HasAnnotation(AnnotationGuardTriggered) {
		t.Error("unexpected guard_triggered annotation")
	}
}

func TestTurn_UpdatesFlags(t *testing.T) {
	tests := []struct {
		name string
		turn Turn
		want bool
	}{
		{"successful dispatch", Turn{Agent: MathExpert}, true},
		{"tie-broken dispatch", Turn{Agent: Planning, Annotations: []string{AnnotationTieBreak}}, true},
		{"failed dispatch", Turn{Agent: ExamCreator, Annotations: []string{AnnotationResponderFailure}}, false},
		{"finish", Turn{Agent: Finish}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.turn.UpdatesFlags(); got != tt.want {
				t.Errorf("UpdatesFlags() = %v, want %v", got, tt.want)
			}
		})
	}
}
