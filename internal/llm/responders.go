// ABOUTME: LLM-backed specialized responders: math expert, exam creator, evaluator and planner
// ABOUTME: Each responder renders a hydrated prompt, requests JSON and turns it into an artifact
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harper/tutor/internal/core"
	"github.com/harper/tutor/internal/models"
)

// Hydrator builds the user prompt of a responder from a session snapshot
type Hydrator interface {
	Hydrate(agent models.Agent, snap models.Snapshot) string
}

// NoAnswerToEvaluate is returned by the evaluator when nothing has been answered yet
const NoAnswerToEvaluate = "No hay una respuesta previa para evaluar. Hazme una pregunta y con gusto la reviso después."

const mathPrompt = `Eres un experto en matemáticas con enfoque pedagógico personalizado.

Adapta la explicación al perfil del estudiante cuando esté disponible: conecta con los temas que domina y refuerza sus áreas de dificultad.
Si el mensaje hace referencia a algo anterior ("el ejercicio 1", "el teorema que vimos"), usa el historial de la conversación y no el material de apoyo.
Si no encuentras la referencia en el historial, dilo y ayuda con información general.

Responde ÚNICAMENTE con un objeto JSON:
{"explanation": "<explicación detallada>", "formulas": ["<fórmula en LaTeX si aplica>"], "difficulty_level": "básico|intermedio|avanzado", "related_concepts": ["<concepto>"]}`

const examPrompt = `Eres un experto en la creación de exámenes matemáticos personalizados para estudiantes universitarios.

Adapta la dificultad al nivel del estudiante, incluye preguntas conceptuales, procedimentales y de aplicación, ordénalas de menor a mayor dificultad y estima un tiempo realista.

Responde ÚNICAMENTE con un objeto JSON:
{"exam_title": "<título>", "questions": ["<pregunta>"], "difficulty_level": "básico|intermedio|avanzado", "estimated_time": <minutos>, "topic_coverage": ["<tema>"]}`

const evaluatorPrompt = `Eres un evaluador experto en educación matemática y calidad de respuestas pedagógicas.

Evalúa la respuesta indicada según estos criterios: correctitud matemática, claridad pedagógica, completitud, relevancia y adaptación al perfil del estudiante.
Determina si la respuesta es suficiente o necesita mejoras y da recomendaciones concretas.

Responde ÚNICAMENTE con un objeto JSON:
{"is_sufficient": true|false, "correctness_score": <0-1>, "clarity_score": <0-1>, "completeness_score": <0-1>, "relevance_score": <0-1>, "needs_more_context": true|false, "improvement_suggestions": ["<sugerencia>"], "overall_quality": "<resumen breve>"}`

const planningPrompt = `Eres un experto creador de planes de estudio de matemáticas.

Construye un plan ordenado: el orden de los temas es el orden en que deben estudiarse. Ten en cuenta el nivel del estudiante y sus áreas de dificultad.

Responde ÚNICAMENTE con un objeto JSON:
{"plan": [{"topic": "<tema>", "topic_description": "<descripción>", "time_allocated": <horas>}], "score": <0-1>}`

// Responder implements core.Responder for one agent
type Responder struct {
	agent    models.Agent
	system   string
	chat     ChatCompleter
	hydrator Hydrator
	parse    func(content string) (models.Response, error)
}

// NewResponders builds one responder per agent sharing a chat completer and hydrator
func NewResponders(chat ChatCompleter, hydrator Hydrator) map[models.Agent]core.Responder {
	return map[models.Agent]core.Responder{
		models.MathExpert:  NewResponder(models.MathExpert, chat, hydrator),
		models.ExamCreator: NewResponder(models.ExamCreator, chat, hydrator),
		models.Evaluator:   NewResponder(models.Evaluator, chat, hydrator),
		models.Planning:    NewResponder(models.Planning, chat, hydrator),
	}
}

// NewResponder creates the responder for agent
func NewResponder(agent models.Agent, chat ChatCompleter, hydrator Hydrator) *Responder {
	r := &Responder{agent: agent, chat: chat, hydrator: hydrator}
	switch agent {
	case models.MathExpert:
		r.system, r.parse = mathPrompt, parseMathAnswer
	case models.ExamCreator:
		r.system, r.parse = examPrompt, parseExam
	case models.Evaluator:
		r.system, r.parse = evaluatorPrompt, parseEvaluation
	case models.Planning:
		r.system, r.parse = planningPrompt, parsePlan
	}
	return r
}

// Agent returns the agent this responder serves
func (r *Responder) Agent() models.Agent {
	return r.agent
}

// Respond asks the model for a structured answer. Failures are returned as errors
// for the Supervisor to annotate.
func (r *Responder) Respond(ctx context.Context, utterance string, snap models.Snapshot) (models.Response, error) {
	if r.parse == nil {
		return models.Response{}, fmt.Errorf("no responder for %q", r.agent)
	}
	if r.agent == models.Evaluator {
		if _, ok := evaluationTarget(snap); !ok {
			return models.Response{Artifact: NoAnswerToEvaluate, Satisfied: true}, nil
		}
	}

	if snap.Utterance == "" {
		snap.Utterance = utterance
	}
	content, err := r.chat.Complete(ctx, r.system, r.hydrator.Hydrate(r.agent, snap), CompletionOptions{Temperature: 0.3, JSON: true})
	if err != nil {
		return models.Response{}, err
	}

	resp, err := r.parse(stripCodeFence(content))
	if err != nil {
		return models.Response{}, fmt.Errorf("%s: %w", r.agent, err)
	}
	return resp, nil
}

// evaluationTarget finds the answer the evaluator should judge
func evaluationTarget(snap models.Snapshot) (string, bool) {
	if target := snap.Flags.AwaitingEvaluationOf; target != models.AgentNone {
		if a, ok := snap.LatestArtifact(target); ok {
			return a, true
		}
	}
	for _, agent := range []models.Agent{models.MathExpert, models.ExamCreator, models.Planning} {
		if a, ok := snap.LatestArtifact(agent); ok {
			return a, true
		}
	}
	return "", false
}

type mathAnswer struct {
	Explanation     string   `json:"explanation"`
	Formulas        []string `json:"formulas"`
	DifficultyLevel string   `json:"difficulty_level"`
	RelatedConcepts []string `json:"related_concepts"`
}

func parseMathAnswer(content string) (models.Response, error) {
	var a mathAnswer
	if err := json.Unmarshal([]byte(content), &a); err != nil {
		return models.Response{}, fmt.Errorf("failed to parse JSON: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(a.Explanation))
	if f := nonEmpty(a.Formulas); len(f) > 0 {
		sb.WriteString("\n\n**Fórmulas:**\n")
		for _, formula := range f {
			fmt.Fprintf(&sb, "- %s\n", formula)
		}
	}
	if c := nonEmpty(a.RelatedConcepts); len(c) > 0 {
		fmt.Fprintf(&sb, "\n**Conceptos relacionados:** %s", strings.Join(c, ", "))
	}

	return models.Response{
		Artifact:  strings.TrimSpace(sb.String()),
		Satisfied: strings.TrimSpace(a.Explanation) != "",
		Summary:   summarize(a.Explanation),
	}, nil
}

type exam struct {
	Title           string   `json:"exam_title"`
	Questions       []string `json:"questions"`
	DifficultyLevel string   `json:"difficulty_level"`
	EstimatedTime   int      `json:"estimated_time"`
	TopicCoverage   []string `json:"topic_coverage"`
}

func parseExam(content string) (models.Response, error) {
	var e exam
	if err := json.Unmarshal([]byte(content), &e); err != nil {
		return models.Response{}, fmt.Errorf("failed to parse JSON: %w", err)
	}
	questions := nonEmpty(e.Questions)

	var sb strings.Builder
	title := strings.TrimSpace(e.Title)
	if title == "" {
		title = "Examen"
	}
	fmt.Fprintf(&sb, "## %s\n", title)
	if e.DifficultyLevel != "" || e.EstimatedTime > 0 {
		fmt.Fprintf(&sb, "\n*Dificultad: %s · Tiempo estimado: %d min*\n", e.DifficultyLevel, e.EstimatedTime)
	}
	sb.WriteString("\n")
	for i, q := range questions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
	}

	return models.Response{
		Artifact:  strings.TrimSpace(sb.String()),
		Satisfied: len(questions) > 0,
		Summary:   fmt.Sprintf("%s (%d preguntas)", title, len(questions)),
	}, nil
}

type evaluation struct {
	IsSufficient           bool     `json:"is_sufficient"`
	CorrectnessScore       float64  `json:"correctness_score"`
	ClarityScore           float64  `json:"clarity_score"`
	CompletenessScore      float64  `json:"completeness_score"`
	RelevanceScore         float64  `json:"relevance_score"`
	NeedsMoreContext       bool     `json:"needs_more_context"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
	OverallQuality         string   `json:"overall_quality"`
}

func parseEvaluation(content string) (models.Response, error) {
	var ev evaluation
	if err := json.Unmarshal([]byte(content), &ev); err != nil {
		return models.Response{}, fmt.Errorf("failed to parse JSON: %w", err)
	}

	verdict := "La respuesta necesita mejoras."
	if ev.IsSufficient {
		verdict = "La respuesta es adecuada."
	}

	var sb strings.Builder
	sb.WriteString("**Evaluación:** " + verdict)
	if q := strings.TrimSpace(ev.OverallQuality); q != "" {
		sb.WriteString(" " + q)
	}
	fmt.Fprintf(&sb, "\n\nCorrección %.0f%% · Claridad %.0f%% · Completitud %.0f%% · Relevancia %.0f%%",
		ev.CorrectnessScore*100, ev.ClarityScore*100, ev.CompletenessScore*100, ev.RelevanceScore*100)
	if s := nonEmpty(ev.ImprovementSuggestions); len(s) > 0 {
		sb.WriteString("\n\n**Sugerencias:**\n")
		for _, suggestion := range s {
			fmt.Fprintf(&sb, "- %s\n", suggestion)
		}
	}

	return models.Response{
		Artifact:  strings.TrimSpace(sb.String()),
		Satisfied: ev.IsSufficient,
		Summary:   verdict,
	}, nil
}

type studyPlan struct {
	Plan []struct {
		Topic            string  `json:"topic"`
		TopicDescription string  `json:"topic_description"`
		TimeAllocated    float64 `json:"time_allocated"`
	} `json:"plan"`
	Score float64 `json:"score"`
}

func parsePlan(content string) (models.Response, error) {
	var p studyPlan
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return models.Response{}, fmt.Errorf("failed to parse JSON: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("## Plan de estudio\n\n")
	total := 0.0
	count := 0
	for _, item := range p.Plan {
		topic := strings.TrimSpace(item.Topic)
		if topic == "" {
			continue
		}
		count++
		total += item.TimeAllocated
		fmt.Fprintf(&sb, "%d. **%s** (%.1f h)", count, topic, item.TimeAllocated)
		if d := strings.TrimSpace(item.TopicDescription); d != "" {
			sb.WriteString(": " + d)
		}
		sb.WriteString("\n")
	}
	if count > 0 {
		fmt.Fprintf(&sb, "\nTiempo total: %.1f h", total)
	}

	return models.Response{
		Artifact:  strings.TrimSpace(sb.String()),
		Satisfied: count > 0,
		Summary:   fmt.Sprintf("plan de %d temas", count),
	}, nil
}

// nonEmpty returns the trimmed non-blank items
func nonEmpty(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// summarize keeps the first sentence of text, bounded in length
func summarize(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".\n"); i > 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) > 120 {
		text = string(runes[:120]) + "..."
	}
	return text
}
