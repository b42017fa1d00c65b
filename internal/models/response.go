// ABOUTME: Responder input and output types
// ABOUTME: Snapshot is the read-only projection of session state handed to responders
package models

// Snapshot is a copy of the session state a responder may read. Responders never
// receive the live state; mutating a snapshot has no effect on the session.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	Utterance string    `json:"utterance"`
	Flags     Flags     `json:"flags"`
	History   []Turn    `json:"history,omitempty"`
	Current   []Turn    `json:"current,omitempty"`
	Passages  []Passage `json:"passages,omitempty"`

	// Profile is the learner context, nil when none is configured
	Profile *StudentProfile `json:"profile,omitempty"`
}

// LatestArtifact returns the most recent artifact produced by agent in the current
// user turn, falling back to committed history
func (s Snapshot) LatestArtifact(agent Agent) (string, bool) {
	for i := len(s.Current) - 1; i >= 0; i-- {
		if s.Current[i].Agent == agent && s.Current[i].Artifact != "" {
			return s.Current[i].Artifact, true
		}
	}
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Agent == agent && s.History[i].Artifact != "" {
			return s.History[i].Artifact, true
		}
	}
	return "", false
}

// Response is what a specialized responder returns for one dispatch
type Response struct {
	Artifact  string `json:"artifact"`
	Satisfied bool   `json:"satisfied"`
	// Summary is a short description stored in the last_summary flag
	Summary string `json:"summary,omitempty"`
}
