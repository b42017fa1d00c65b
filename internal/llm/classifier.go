// ABOUTME: LLM-backed intent classifier for the Supervisor
// ABOUTME: Asks the chat model for a JSON verdict with per-intent scores and a topic
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harper/tutor/internal/models"
)

const classifierPrompt = `Eres el supervisor de un tutor de matemáticas. Tu única tarea es decidir qué agente debe atender el mensaje del estudiante.

AGENTES DISPONIBLES:
- math_expert: explicación matemática profunda, conceptos, teoremas, resolución de problemas
- exam_creator: crear exámenes, quizzes, evaluaciones y preguntas o ejercicios de práctica
- evaluator: evaluar la calidad o corrección de una respuesta anterior
- planning: crear u organizar planes de estudio

PALABRAS CLAVE PARA exam_creator: "crea un examen", "genera un quiz", "haz preguntas", "test", "práctica", "ejercicios", "prueba"
PALABRAS CLAVE PARA math_expert: "explica", "qué es", "cómo resolver", "demuestra", "teorema", "fórmula", "no entiendo"
PALABRAS CLAVE PARA evaluator: "evalúa", "revisa", "¿está bien?", "¿es correcto?"
PALABRAS CLAVE PARA planning: "plan de estudio", "cronograma", "organizar", "horario"

Si el estudiante rechaza algo de forma explícita ("no quiero ejercicios"), no elijas ese agente.

Responde ÚNICAMENTE con un objeto JSON con estos campos:
{"label": "<agente>", "confidence": <0-1>, "scores": {"math_expert": <0-1>, "exam_creator": <0-1>, "evaluator": <0-1>, "planning": <0-1>}, "topic": "<tema matemático breve o vacío>", "reasoning": "<una frase>"}`

// classifierOutput is the JSON verdict of the model
type classifierOutput struct {
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
	Topic      string             `json:"topic"`
	Reasoning  string             `json:"reasoning"`
}

// Classifier implements core.Classifier on top of a chat model
type Classifier struct {
	chat ChatCompleter
}

// NewClassifier creates a classifier using the given chat completer
func NewClassifier(chat ChatCompleter) *Classifier {
	return &Classifier{chat: chat}
}

// Classify labels an utterance. Transport failures and malformed verdicts are
// reported as ErrClassifierUnavailable.
func (c *Classifier) Classify(ctx context.Context, req models.ClassifyRequest) (models.Classification, error) {
	content, err := c.chat.Complete(ctx, classifierPrompt, classifierUserPrompt(req), CompletionOptions{Temperature: 0, JSON: true})
	if err != nil {
		return models.Classification{}, models.ClassifierUnavailable(err)
	}
	return parseClassification(content)
}

func classifierUserPrompt(req models.ClassifyRequest) string {
	var sb strings.Builder
	if req.LastAgent != models.AgentNone {
		fmt.Fprintf(&sb, "Último agente: %s\n", req.LastAgent)
	}
	if req.LastTopic != "" {
		fmt.Fprintf(&sb, "Último tema: %s\n", req.LastTopic)
	}
	fmt.Fprintf(&sb, "Mensaje del estudiante: %s", req.Utterance)
	return sb.String()
}

// parseClassification validates the model output
func parseClassification(content string) (models.Classification, error) {
	var out classifierOutput
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &out); err != nil {
		return models.Classification{}, models.ClassifierUnavailable(fmt.Errorf("malformed verdict: %w", err))
	}

	label, err := models.ParseAgent(out.Label)
	if err != nil || !label.IsResponder() {
		return models.Classification{}, models.ClassifierUnavailable(fmt.Errorf("malformed label %q", out.Label))
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return models.Classification{}, models.ClassifierUnavailable(fmt.Errorf("confidence %v out of range", out.Confidence))
	}

	cls := models.Classification{
		Label:      label,
		Confidence: out.Confidence,
		Topic:      strings.TrimSpace(out.Topic),
	}
	for _, agent := range models.Responders {
		score, ok := out.Scores[string(agent)]
		if !ok || score <= 0 {
			continue
		}
		if score > 1 {
			score = 1
		}
		cls.Candidates = append(cls.Candidates, models.Candidate{Agent: agent, Score: score})
	}
	return cls, nil
}
