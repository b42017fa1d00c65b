// ABOUTME: Intent classifier request and result types
// ABOUTME: Candidates carry per-label scores used by the mixed-intent tie-break
package models

import "sort"

// ClassifyRequest is the context hint handed to an intent classifier
type ClassifyRequest struct {
	Utterance string `json:"utterance"`
	LastAgent Agent  `json:"last_agent,omitempty"`
	LastTopic string `json:"last_topic,omitempty"`
}

// Candidate is one scored label
type Candidate struct {
	Agent Agent   `json:"agent"`
	Score float64 `json:"score"`
}

// Classification is the classifier's verdict on an utterance
type Classification struct {
	Label      Agent       `json:"label"`
	Confidence float64     `json:"confidence"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Topic      string      `json:"topic,omitempty"`
}

// Ranked returns the candidates sorted by descending score, ties kept in input order.
// When no candidates were reported, the label itself is the only candidate.
func (c Classification) Ranked() []Candidate {
	if len(c.Candidates) == 0 {
		if c.Label == AgentNone {
			return nil
		}
		return []Candidate{{Agent: c.Label, Score: c.Confidence}}
	}
	ranked := make([]Candidate, len(c.Candidates))
	copy(ranked, c.Candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
