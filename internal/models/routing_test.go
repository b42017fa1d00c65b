// ABOUTME: Tests for Agent and RoutingDecision types
// ABOUTME: Verifies agent validation, parsing, and decision helpers

package models

import "testing"

func TestAgent_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		agent Agent
		want  bool
	}{
		{"MathExpert", MathExpert, true},
		{"ExamCreator", ExamCreator, true},
		{"Evaluator", Evaluator, true},
		{"Planning", Planning, true},
		{"Finish", Finish, true},
		{"empty string", AgentNone, false},
		{"invalid agent", Agent("student_simulator"), false},
		{"close but wrong", Agent("math"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.agent.IsValid()
			if got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAgent_IsResponder(t *testing.T) {
	for _, a := range Responders {
		if !a.IsResponder() {
			t.Errorf("%s.IsResponder() = false, want true", a)
		}
	}
	if Finish.IsResponder() {
		t.Error("FINISH should not be a responder")
	}
	if AgentNone.IsResponder() {
		t.Error("empty agent should not be a responder")
	}
}

func TestAgent_Constants(t *testing.T) {
	if MathExpert != "math_expert" {
		t.Errorf("MathExpert = %q, want %q", MathExpert, "math_expert")
	}
	if ExamCreator != "exam_creator" {
		t.Errorf("ExamCreator = %q, want %q", ExamCreator, "exam_creator")
	}
	if Evaluator != "evaluator" {
		t.Errorf("Evaluator = %q, want %q", Evaluator, "evaluator")
	}
	if Planning != "planning" {
		t.Errorf("Planning = %q, want %q", Planning, "planning")
	}
	if Finish != "FINISH" {
		t.Errorf("Finish = %q, want %q", Finish, "FINISH")
	}
}

func TestParseAgent(t *testing.T) {
	tests := []struct {
		label   string
		want    Agent
		wantErr bool
	}{
		{"math_expert", MathExpert, false},
		{"  Exam_Creator ", ExamCreator, false},
		{"finish", Finish, false},
		{"FINISH", Finish, false},
		{"planning", Planning, false},
		{"", AgentNone, true},
		{"teacher", AgentNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseAgent(tt.label)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAgent(%q) error = %v, wantErr %v", tt.label, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAgent(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestRoutingDecision_Helpers(t *testing.T) {
	d := RoutingDecision{Target: MathExpert, Rationale: "explanation requested"}
	if d.IsTerminal() {
		t.Error("math_expert decision should not be terminal")
	}
	if d.Score() != -1 {
		t.Errorf("Score() = %v, want -1 without confidence", d.Score())
	}

	d = RoutingDecision{Target: Finish, Confidence: Confidence(0.9)}
	if !d.IsTerminal() {
		t.Error("FINISH decision should be terminal")
	}
	if d.Score() != 0.9 {
		t.Errorf("Score() = %v, want 0.9", d.Score())
	}
}
