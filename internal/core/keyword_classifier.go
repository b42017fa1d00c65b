// ABOUTME: KeywordClassifier is a deterministic rule-table intent classifier
// ABOUTME: Used offline and as the fallback when the LLM classifier is not configured
package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/harper/tutor/internal/models"
)

// intentLexicon holds the folded cue phrases of each responder
var intentLexicon = map[models.Agent][]string{
	models.ExamCreator: {
		"examen", "examenes", "quiz", "test", "evaluacion", "preguntas", "practica",
		"practicar", "ejercicios", "ejercicio", "crea", "creame", "genera", "generame",
		"prueba", "assessment", "exam", "exercises", "exercise",
		"practice", "problem set", "worksheet",
	},
	models.MathExpert: {
		"explica", "explicame", "explicar", "explicacion", "que es", "como", "teorema",
		"formula", "concepto", "definicion", "resolver", "resuelve", "demuestra",
		"demostracion", "entender", "comprender", "explain", "explanation",
		"what is", "how do", "how does", "theorem", "concept", "definition", "solve",
		"prove", "proof", "understand",
	},
	models.Evaluator: {
		"evaluar", "evalua", "evaluame", "revisar", "revisa", "revisame", "calidad",
		"corrige", "corregir", "califica", "calificar", "evaluate", "grade", "review",
		"feedback", "check my",
	},
	models.Planning: {
		"plan", "planificar", "planifica", "planificacion", "cronograma", "horario",
		"organizar", "organiza", "calendario", "ruta de estudio", "study plan",
		"schedule", "roadmap", "temario",
	},
}

var lexiconPhrases = compileLexicon()

func compileLexicon() map[models.Agent][][]string {
	compiled := make(map[models.Agent][][]string, len(intentLexicon))
	for agent, cues := range intentLexicon {
		for _, cue := range cues {
			compiled[agent] = append(compiled[agent], strings.Fields(cue))
		}
	}
	return compiled
}

// topicMarkers introduce the subject of a request, e.g. "sobre álgebra básica"
var topicMarkers = [][]string{{"acerca", "de"}, {"sobre"}, {"about"}, {"on"}, {"de"}}

// KeywordClassifier scores each responder by whether any of its cue phrases
// occurs unnegated. A request such as "crea ejercicios" carries a verb and a
// noun cue for the same intent; each intent counts once.
type KeywordClassifier struct{}

// NewKeywordClassifier creates a new KeywordClassifier instance
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify implements Classifier. It never fails; utterances without cues go
// to math_expert with low confidence.
func (k *KeywordClassifier) Classify(ctx context.Context, req models.ClassifyRequest) (models.Classification, error) {
	if err := ctx.Err(); err != nil {
		return models.Classification{}, models.ClassifierUnavailable(err)
	}

	cl := clauses(req.Utterance)
	hits := k.score(cl)
	total := len(hits)

	result := models.Classification{Topic: extractTopic(cl)}
	if total == 0 {
		result.Label = models.MathExpert
		result.Confidence = 0.25
		return result, nil
	}

	for _, agent := range TieOrder {
		if !hits[agent] {
			continue
		}
		score := 1 / float64(total)
		result.Candidates = append(result.Candidates, models.Candidate{Agent: agent, Score: score})
		if score > result.Confidence {
			result.Label = agent
			result.Confidence = score
		}
	}
	return result, nil
}

// score reports the agents with at least one non-negated cue
func (k *KeywordClassifier) score(cl [][]string) map[models.Agent]bool {
	hits := make(map[models.Agent]bool)
	for agent, phrases := range lexiconPhrases {
		for _, phrase := range phrases {
			for _, m := range findCue(cl, phrase) {
				if !m.negated {
					hits[agent] = true
				}
			}
		}
	}
	return hits
}

// extractTopic returns the words following the last topic marker of the last clause that has one
func extractTopic(cl [][]string) string {
	for ci := len(cl) - 1; ci >= 0; ci-- {
		c := cl[ci]
		for i := len(c) - 1; i >= 0; i-- {
			for _, marker := range topicMarkers {
				if i+len(marker) > len(c) {
					continue
				}
				if strings.Join(c[i:i+len(marker)], " ") != strings.Join(marker, " ") {
					continue
				}
				rest := c[i+len(marker):]
				if len(rest) == 0 {
					continue
				}
				if len(rest) > 4 {
					rest = rest[:4]
				}
				return strings.Join(rest, " ")
			}
		}
	}
	return ""
}

// String describes the classifier for logs
func (k *KeywordClassifier) String() string {
	return fmt.Sprintf("keyword(%d agents)", len(intentLexicon))
}
