// ABOUTME: Tests for the LLM-backed responders
// ABOUTME: Verifies JSON parsing into artifacts and the satisfied verdict per agent
package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/harper/tutor/internal/core"
	"github.com/harper/tutor/internal/models"
)

func TestResponders_Parse(t *testing.T) {
	tests := []struct {
		name      string
		agent     models.Agent
		content   string
		satisfied bool
		contains  []string
	}{
		{
			name:      "math answer",
			agent:     models.MathExpert,
			content:   `{"explanation": "El teorema de Pitágoras relaciona los catetos con la hipotenusa. Se usa en triángulos rectángulos.", "formulas": ["a^2 + b^2 = c^2"], "difficulty_level": "básico", "related_concepts": ["triángulos", ""]}`,
			satisfied: true,
			contains:  []string{"Pitágoras", "a^2 + b^2 = c^2", "Conceptos relacionados:** triángulos"},
		},
		{
			name:      "empty explanation",
			agent:     models.MathExpert,
			content:   `{"explanation": "  "}`,
			satisfied: false,
		},
		{
			name:      "exam",
			agent:     models.ExamCreator,
			content:   `{"exam_title": "Álgebra básica", "questions": ["Resuelve 2x + 3 = 7", "Factoriza x^2 - 1"], "difficulty_level": "básico", "estimated_time": 30}`,
			satisfied: true,
			contains:  []string{"## Álgebra básica", "1. Resuelve 2x + 3 = 7", "2. Factoriza", "30 min"},
		},
		{
			name:      "exam without questions",
			agent:     models.ExamCreator,
			content:   `{"exam_title": "Vacío", "questions": []}`,
			satisfied: false,
		},
		{
			name:      "insufficient evaluation",
			agent:     models.Evaluator,
			content:   `{"is_sufficient": false, "correctness_score": 0.9, "clarity_score": 0.4, "completeness_score": 0.5, "relevance_score": 1, "improvement_suggestions": ["Añade un ejemplo"], "overall_quality": "Falta claridad."}`,
			satisfied: false,
			contains:  []string{"necesita mejoras", "Claridad 40%", "Añade un ejemplo"},
		},
		{
			name:      "sufficient evaluation",
			agent:     models.Evaluator,
			content:   `{"is_sufficient": true, "correctness_score": 1, "clarity_score": 1, "completeness_score": 1, "relevance_score": 1}`,
			satisfied: true,
			contains:  []string{"es adecuada"},
		},
		{
			name:      "plan",
			agent:     models.Planning,
			content:   `{"plan": [{"topic": "Límites", "topic_description": "Concepto de límite", "time_allocated": 3}, {"topic": "Derivadas", "time_allocated": 4.5}], "score": 0.8}`,
			satisfied: true,
			contains:  []string{"1. **Límites** (3.0 h): Concepto de límite", "2. **Derivadas** (4.5 h)", "Tiempo total: 7.5 h"},
		},
	}

	snap := models.Snapshot{
		Utterance: "pregunta",
		History:   []models.Turn{{Agent: models.MathExpert, Artifact: "respuesta previa"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResponder(tt.agent, &fakeChat{content: tt.content}, core.NewContextHydrator())
			resp, err := r.Respond(context.Background(), "pregunta", snap)
			if err != nil {
				t.Fatalf("Respond() error = %v", err)
			}
			if resp.Satisfied != tt.satisfied {
				t.Errorf("Satisfied = %v, want %v", resp.Satisfied, tt.satisfied)
			}
			for _, want := range tt.contains {
				if !strings.Contains(resp.Artifact, want) {
					t.Errorf("Artifact missing %q:\n%s", want, resp.Artifact)
				}
			}
		})
	}
}

func TestResponder_MalformedOutput(t *testing.T) {
	r := NewResponder(models.MathExpert, &fakeChat{content: "Claro, aquí tienes la explicación"}, core.NewContextHydrator())
	if _, err := r.Respond(context.Background(), "¿Qué es un límite?", models.Snapshot{}); err == nil {
		t.Error("Respond() should fail on non-JSON output")
	}
}

func TestResponder_ChatError(t *testing.T) {
	want := errors.New("429 too many requests")
	r := NewResponder(models.Planning, &fakeChat{err: want}, core.NewContextHydrator())
	if _, err := r.Respond(context.Background(), "plan", models.Snapshot{}); !errors.Is(err, want) {
		t.Errorf("Respond() error = %v, want %v", err, want)
	}
}

func TestResponder_EvaluatorWithoutAnswer(t *testing.T) {
	chat := &fakeChat{content: `{"is_sufficient": false}`}
	r := NewResponder(models.Evaluator, chat, core.NewContextHydrator())

	resp, err := r.Respond(context.Background(), "¿Está bien?", models.Snapshot{})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if resp.Artifact != NoAnswerToEvaluate || !resp.Satisfied {
		t.Errorf("Respond() = %+v, want the no-answer verdict", resp)
	}
	if chat.calls != 0 {
		t.Errorf("chat called %d times, want 0", chat.calls)
	}
}

func TestResponder_PromptIncludesUtterance(t *testing.T) {
	chat := &fakeChat{content: `{"explanation": "ok"}`}
	r := NewResponder(models.MathExpert, chat, core.NewContextHydrator())

	if _, err := r.Respond(context.Background(), "¿Qué es una derivada?", models.Snapshot{}); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if !strings.Contains(chat.user, "¿Qué es una derivada?") {
		t.Errorf("user prompt missing utterance:\n%s", chat.user)
	}
	if chat.system != mathPrompt {
		t.Error("math_expert should use its own system prompt")
	}
}

func TestNewResponders_CoversAllAgents(t *testing.T) {
	responders := NewResponders(&fakeChat{}, core.NewContextHydrator())
	for _, agent := range models.Responders {
		if _, ok := responders[agent]; !ok {
			t.Errorf("missing responder for %s", agent)
		}
	}
}
