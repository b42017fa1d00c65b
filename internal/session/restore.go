// ABOUTME: Rebuilds a live session State from a persisted transcript
// ABOUTME: Flags are derived from the last successful dispatch of the transcript
package session

import (
	"github.com/harper/tutor/internal/models"
)

// FromRecord restores the state of a persisted session. A nil record yields nil.
func FromRecord(rec *models.SessionRecord) (*State, error) {
	if rec == nil {
		return nil, nil
	}
	st := New(rec.SessionID)
	for _, t := range rec.Turns {
		if err := st.Append(t); err != nil {
			return nil, err
		}
	}
	st.RestoreFlags(deriveFlags(rec))
	return st, nil
}

// deriveFlags replays the flag updates of the transcript: each successful
// dispatch sets last_agent and, when non-empty, last_topic and last_summary.
// A record without turns keeps its stored topic.
func deriveFlags(rec *models.SessionRecord) models.Flags {
	f := models.Flags{}
	if len(rec.Turns) == 0 {
		f.LastTopic = rec.LastTopic
	}
	for _, t := range rec.Turns {
		if !t.UpdatesFlags() {
			continue
		}
		f.LastAgent = t.Agent
		f.LastAgentTurn = t.UserTurn
		if t.Topic != "" {
			f.LastTopic = t.Topic
		}
		if t.Summary != "" {
			f.LastSummary = t.Summary
		}
	}
	return f
}
