// ABOUTME: TieBreaker resolves mixed-intent classifications whose scores are within a margin
// ABOUTME: Applies explicit negation first, then a fixed total order over intents
package core

import (
	"fmt"
	"strings"

	"github.com/harper/tutor/internal/models"
)

// DefaultTieMargin is the score distance under which candidates count as tied
const DefaultTieMargin = 0.10

// TieOrder is the precedence among competing intents:
// explanation > evaluation of the prior turn > planning > practice generation
var TieOrder = []models.Agent{models.MathExpert, models.Evaluator, models.Planning, models.ExamCreator}

const scoreEpsilon = 1e-9

// TieBreaker decides between candidates that score within Margin of the top score
type TieBreaker struct {
	Margin float64
}

// NewTieBreaker creates a TieBreaker with the given closeness margin
func NewTieBreaker(margin float64) *TieBreaker {
	return &TieBreaker{Margin: margin}
}

// Resolution explains the outcome of Resolve
type Resolution struct {
	Target    models.Agent
	Ambiguous []models.Agent
	Negated   []models.Agent
	Applied   bool
}

// Rationale renders the resolution for a routing decision
func (r Resolution) Rationale() string {
	if !r.Applied {
		return ""
	}
	s := fmt.Sprintf("tie-break among [%s] chose %s", joinAgents(r.Ambiguous), r.Target)
	if len(r.Negated) > 0 {
		s += fmt.Sprintf(" (negated: %s)", joinAgents(r.Negated))
	}
	return s
}

// Resolve returns the classifier's label when it is unambiguous. Otherwise it
// drops intents the utterance explicitly negates and picks the highest intent in TieOrder.
func (tb *TieBreaker) Resolve(utterance string, c models.Classification) Resolution {
	ranked := validCandidates(c.Ranked())
	if len(ranked) == 0 {
		return Resolution{Target: c.Label}
	}

	top := ranked[0].Score
	var ambiguous []models.Agent
	for _, cand := range ranked {
		if top-cand.Score <= tb.Margin+scoreEpsilon {
			ambiguous = append(ambiguous, cand.Agent)
		}
	}
	if len(ambiguous) < 2 {
		return Resolution{Target: c.Label}
	}

	cl := clauses(utterance)
	var kept, negated []models.Agent
	for _, agent := range ambiguous {
		if intentNegated(cl, agent) {
			negated = append(negated, agent)
			continue
		}
		kept = append(kept, agent)
	}
	if len(kept) == 0 {
		kept = ambiguous
		negated = nil
	}

	return Resolution{
		Target:    highestPriority(kept),
		Ambiguous: ambiguous,
		Negated:   negated,
		Applied:   true,
	}
}

// intentNegated reports whether some cue of agent occurs only in negated form
func intentNegated(cl [][]string, agent models.Agent) bool {
	negated, affirmed := false, false
	for _, phrase := range lexiconPhrases[agent] {
		for _, m := range findCue(cl, phrase) {
			if m.negated {
				negated = true
			} else {
				affirmed = true
			}
		}
	}
	return negated && !affirmed
}

func highestPriority(agents []models.Agent) models.Agent {
	for _, candidate := range TieOrder {
		for _, a := range agents {
			if a == candidate {
				return a
			}
		}
	}
	return agents[0]
}

func validCandidates(cands []models.Candidate) []models.Candidate {
	out := cands[:0:0]
	seen := make(map[models.Agent]bool)
	for _, c := range cands {
		if !c.Agent.IsResponder() || seen[c.Agent] {
			continue
		}
		seen[c.Agent] = true
		out = append(out, c)
	}
	return out
}

func joinAgents(agents []models.Agent) string {
	parts := make([]string, len(agents))
	for i, a := range agents {
		parts[i] = string(a)
	}
	return strings.Join(parts, " ")
}
