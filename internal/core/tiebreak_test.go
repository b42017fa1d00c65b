// ABOUTME: Tests for the mixed-intent tie-break policy
// ABOUTME: Verifies the margin, negation handling and the fixed intent order
package core

import (
	"strings"
	"testing"

	"github.com/harper/tutor/internal/models"
)

func scored(pairs ...interface{}) models.Classification {
	var c models.Classification
	for i := 0; i+1 < len(pairs); i += 2 {
		agent := pairs[i].(models.Agent)
		score := pairs[i+1].(float64)
		c.Candidates = append(c.Candidates, models.Candidate{Agent: agent, Score: score})
		if score > c.Confidence {
			c.Label = agent
			c.Confidence = score
		}
	}
	return c
}

func TestTieBreaker_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		cls       models.Classification
		want      models.Agent
		applied   bool
	}{
		{
			name:      "clear winner",
			utterance: "Crea un examen",
			cls:       scored(models.ExamCreator, 0.8, models.MathExpert, 0.2),
			want:      models.ExamCreator,
		},
		{
			name:      "label only",
			utterance: "Hola",
			cls:       models.Classification{Label: models.Planning, Confidence: 0.4},
			want:      models.Planning,
		},
		{
			name:      "negated practice",
			utterance: "No quiero ejercicios, solo quiero entender derivadas.",
			cls:       scored(models.ExamCreator, 0.55, models.MathExpert, 0.5),
			want:      models.MathExpert,
			applied:   true,
		},
		{
			name:      "negated explanation",
			utterance: "No quiero explicacion, dame ejercicios de derivadas",
			cls:       scored(models.MathExpert, 0.5, models.ExamCreator, 0.5),
			want:      models.ExamCreator,
			applied:   true,
		},
		{
			name:      "order prefers evaluation over planning",
			utterance: "Revisa mi plan",
			cls:       scored(models.Planning, 0.5, models.Evaluator, 0.45),
			want:      models.Evaluator,
			applied:   true,
		},
		{
			name:      "order prefers planning over practice",
			utterance: "Hazme un plan",
			cls:       scored(models.ExamCreator, 0.5, models.Planning, 0.5),
			want:      models.Planning,
			applied:   true,
		},
		{
			name:      "outside margin",
			utterance: "Crea ejercicios y explica",
			cls:       scored(models.ExamCreator, 0.7, models.MathExpert, 0.3),
			want:      models.ExamCreator,
		},
		{
			name:      "english negation",
			utterance: "I don't want exercises, explain limits",
			cls:       scored(models.ExamCreator, 0.5, models.MathExpert, 0.5),
			want:      models.MathExpert,
			applied:   true,
		},
	}

	tb := NewTieBreaker(DefaultTieMargin)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tb.Resolve(tt.utterance, tt.cls)
			if res.Target != tt.want {
				t.Errorf("Target = %q, want %q", res.Target, tt.want)
			}
			if res.Applied != tt.applied {
				t.Errorf("Applied = %v, want %v", res.Applied, tt.applied)
			}
			if tt.applied && res.Rationale() == "" {
				t.Error("Rationale() should describe the tie-break")
			}
		})
	}
}

func TestTieBreaker_NegationInRationale(t *testing.T) {
	tb := NewTieBreaker(DefaultTieMargin)
	res := tb.Resolve("No quiero ejercicios, solo quiero entender derivadas.",
		scored(models.ExamCreator, 0.55, models.MathExpert, 0.5))

	if len(res.Negated) != 1 || res.Negated[0] != models.ExamCreator {
		t.Errorf("Negated = %v, want [exam_creator]", res.Negated)
	}
	if !strings.Contains(res.Rationale(), "negated: exam_creator") {
		t.Errorf("Rationale() = %q, want negated intent", res.Rationale())
	}
}

func TestTieBreaker_ZeroMargin(t *testing.T) {
	tb := NewTieBreaker(0)
	res := tb.Resolve("Hazme un plan", scored(models.ExamCreator, 0.5, models.Planning, 0.49))
	if res.Applied {
		t.Errorf("Resolve() applied with zero margin: %+v", res)
	}
	if res.Target != models.ExamCreator {
		t.Errorf("Target = %q, want exam_creator", res.Target)
	}
}
