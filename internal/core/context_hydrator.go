// ABOUTME: ContextHydrator assembles responder prompts from a session snapshot
// ABOUTME: Includes learner profile, history, current-turn artifacts and passages within a token budget
package core

import (
	"fmt"
	"strings"

	"github.com/harper/tutor/internal/models"
)

// Hydration defaults
const (
	DefaultMaxPromptTokens = 3000
	DefaultHistoryTurns    = 6
	truncationMarker       = "... [truncado]"
)

// section kinds in output order
const (
	sectionProfile = iota
	sectionHistory
	sectionCurrent
	sectionEvaluation
	sectionPassages
	sectionMessage
)

// dropOrder lists optional sections from least to most important
var dropOrder = []int{sectionProfile, sectionHistory, sectionPassages, sectionCurrent}

// ContextHydrator builds the user prompt a responder sends to its model
type ContextHydrator struct {
	MaxTokens    int
	HistoryTurns int
}

// NewContextHydrator creates a hydrator with default limits
func NewContextHydrator() *ContextHydrator {
	return &ContextHydrator{
		MaxTokens:    DefaultMaxPromptTokens,
		HistoryTurns: DefaultHistoryTurns,
	}
}

// Hydrate assembles the prompt for agent. The student message is always kept;
// for the evaluator the answer under evaluation is kept as well. Optional sections
// are dropped, least important first, until the prompt fits MaxTokens.
func (ch *ContextHydrator) Hydrate(agent models.Agent, snap models.Snapshot) string {
	sections := make(map[int]string)

	if snap.Profile != nil {
		sections[sectionProfile] = formatStudentProfile(snap.Profile)
	}
	if h := ch.formatHistory(snap.History); h != "" {
		sections[sectionHistory] = h
	}
	if c := formatCurrentTurn(snap.Current); c != "" {
		sections[sectionCurrent] = c
	}
	if agent == models.Evaluator {
		sections[sectionEvaluation] = formatUnderEvaluation(snap)
	}
	if len(snap.Passages) > 0 {
		sections[sectionPassages] = formatPassages(snap.Passages)
	}
	sections[sectionMessage] = "MENSAJE ACTUAL DEL ESTUDIANTE:\n" + snap.Utterance + "\n"

	return ch.limitTokens(sections)
}

// formatStudentProfile formats the learner profile
func formatStudentProfile(p *models.StudentProfile) string {
	var sb strings.Builder
	sb.WriteString("PERFIL DEL ESTUDIANTE:\n")
	if p.Name != "" {
		sb.WriteString(fmt.Sprintf("Nombre: %s\n", p.Name))
	}
	sb.WriteString(fmt.Sprintf("Nivel: %s\n", p.Level))
	if len(p.MasteredTopics) > 0 {
		sb.WriteString(fmt.Sprintf("Temas dominados: %s\n", strings.Join(p.MasteredTopics, ", ")))
	}
	if len(p.DifficultyAreas) > 0 {
		sb.WriteString(fmt.Sprintf("Áreas de dificultad: %s\n", strings.Join(p.DifficultyAreas, ", ")))
	}
	if len(p.Preferences) > 0 {
		sb.WriteString(fmt.Sprintf("Preferencias: %s\n", strings.Join(p.Preferences, ", ")))
	}
	return sb.String()
}

// formatHistory renders the last HistoryTurns user turns of committed history
func (ch *ContextHydrator) formatHistory(history []models.Turn) string {
	if len(history) == 0 {
		return ""
	}

	keep := ch.HistoryTurns
	if keep <= 0 {
		keep = DefaultHistoryTurns
	}
	last := history[len(history)-1].UserTurn
	start := len(history)
	for start > 0 && history[start-1].UserTurn > last-keep {
		start--
	}

	var sb strings.Builder
	sb.WriteString("HISTORIAL DE LA CONVERSACIÓN:\n")
	userTurn := -1
	for _, turn := range history[start:] {
		if turn.UserTurn != userTurn {
			sb.WriteString(fmt.Sprintf("\nEstudiante: %s\n", turn.Utterance))
			userTurn = turn.UserTurn
		}
		if turn.Agent.IsResponder() && turn.Artifact != "" {
			sb.WriteString(fmt.Sprintf("%s: %s\n", turn.Agent, turn.Artifact))
		}
	}
	return sb.String()
}

// formatCurrentTurn renders artifacts already produced for this utterance
func formatCurrentTurn(current []models.Turn) string {
	var sb strings.Builder
	for _, turn := range current {
		if !turn.Agent.IsResponder() || turn.Artifact == "" {
			continue
		}
		if sb.Len() == 0 {
			sb.WriteString("RESPUESTAS PREVIAS EN ESTE TURNO:\n")
		}
		sb.WriteString(fmt.Sprintf("[%s] %s\n", turn.Agent, turn.Artifact))
	}
	return sb.String()
}

// formatUnderEvaluation renders the answer the evaluator must judge
func formatUnderEvaluation(snap models.Snapshot) string {
	target := snap.Flags.AwaitingEvaluationOf
	var (
		artifact string
		ok       bool
	)
	if target != models.AgentNone {
		artifact, ok = snap.LatestArtifact(target)
	} else {
		for _, a := range []models.Agent{models.MathExpert, models.ExamCreator, models.Planning} {
			if artifact, ok = snap.LatestArtifact(a); ok {
				target = a
				break
			}
		}
	}
	if !ok {
		return "RESPUESTA A EVALUAR:\n(no hay una respuesta previa; evalúa el mensaje del estudiante)\n"
	}
	return fmt.Sprintf("RESPUESTA A EVALUAR (de %s):\n%s\n", target, artifact)
}

// formatPassages renders retrieved supporting material
func formatPassages(passages []models.Passage) string {
	var sb strings.Builder
	sb.WriteString("MATERIAL DE APOYO:\n")
	for i, p := range passages {
		sb.WriteString(fmt.Sprintf("\n[%d] (relevancia %.2f", i+1, p.Score))
		if p.Source != "" {
			sb.WriteString(", " + p.Source)
		}
		sb.WriteString(")\n")
		sb.WriteString(p.Content + "\n")
	}
	return sb.String()
}

// limitTokens drops optional sections until the prompt fits (4 chars ≈ 1 token)
func (ch *ContextHydrator) limitTokens(sections map[int]string) string {
	maxChars := ch.MaxTokens * 4
	if ch.MaxTokens <= 0 {
		return joinSections(sections)
	}

	for _, kind := range dropOrder {
		if len(joinSections(sections)) <= maxChars {
			break
		}
		delete(sections, kind)
	}

	prompt := joinSections(sections)
	if len(prompt) <= maxChars {
		return prompt
	}

	// Only essentials remain and they are still too long: cut the student message
	msg := sections[sectionMessage]
	over := len(prompt) - maxChars
	keep := len(msg) - over - len(truncationMarker)
	if keep < 0 {
		keep = 0
	}
	sections[sectionMessage] = truncateUTF8(msg, keep) + truncationMarker
	return joinSections(sections)
}

func joinSections(sections map[int]string) string {
	var parts []string
	for kind := sectionProfile; kind <= sectionMessage; kind++ {
		if s, ok := sections[kind]; ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && n < len(s) && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}
