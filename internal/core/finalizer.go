// ABOUTME: Finalizer consolidates the artifacts of one user turn into the visible reply
// ABOUTME: Priority is math_expert > exam_creator > planning > evaluator
package core

import (
	"strings"

	"github.com/harper/tutor/internal/models"
)

const (
	// DefaultReply is used when no responder produced an artifact
	DefaultReply = "No se pudo generar una respuesta adecuada."

	// GuardNote is appended when the cycle guard ended the user turn
	GuardNote = "Nota: se alcanzó el límite de pasos para esta consulta; la respuesta puede estar incompleta."
)

// finalPriority orders artifacts when choosing the primary answer
var finalPriority = []models.Agent{models.MathExpert, models.ExamCreator, models.Planning, models.Evaluator}

// Finalizer formats the turns of a user turn into text
type Finalizer struct{}

// NewFinalizer creates a new Finalizer instance
func NewFinalizer() *Finalizer {
	return &Finalizer{}
}

// Format builds the reply from the latest artifact of each responder. When the
// student asked for an evaluation, the verdict precedes any revised answer.
func (f *Finalizer) Format(turns []models.Turn) string {
	latest := make(map[models.Agent]string)
	var first models.Agent
	guard := false

	for _, t := range turns {
		if t.Agent == models.Finish {
			if t.HasAnnotation(models.AnnotationGuardTriggered) {
				guard = true
			}
			continue
		}
		if first == models.AgentNone {
			first = t.Agent
		}
		if strings.TrimSpace(t.Artifact) != "" {
			latest[t.Agent] = strings.TrimSpace(t.Artifact)
		}
	}

	var primary models.Agent
	for _, agent := range finalPriority {
		if _, ok := latest[agent]; ok {
			primary = agent
			break
		}
	}

	var sections []string
	switch {
	case primary == models.AgentNone:
		sections = append(sections, DefaultReply)
	case first == models.Evaluator && primary != models.Evaluator && latest[models.Evaluator] != "":
		sections = append(sections, latest[models.Evaluator], latest[primary])
	default:
		sections = append(sections, latest[primary])
	}

	if guard {
		sections = append(sections, GuardNote)
	}
	return strings.Join(sections, "\n\n")
}
