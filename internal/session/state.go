// ABOUTME: Per-session conversation state: append-only turn log plus supervisor flags
// ABOUTME: Turns of the in-progress user turn are staged and committed atomically on FINISH
package session

import (
	"github.com/harper/tutor/internal/models"
)

// State is the Context Store of one conversation. It is not safe for concurrent
// use; the Registry serializes access per session.
type State struct {
	id       string
	turns    []models.Turn
	staged   []models.Turn
	flags    models.Flags
	saved    models.Flags
	userTurn int
	inTurn   bool
}

// New creates an empty state for a session
func New(id string) *State {
	if id == "" {
		id = models.NewSessionID()
	}
	return &State{id: id}
}

// ID returns the session identifier
func (s *State) ID() string {
	return s.id
}

// UserTurn returns the number of the current (or last) user turn
func (s *State) UserTurn() int {
	return s.userTurn
}

// InTurn reports whether a user turn is in progress
func (s *State) InTurn() bool {
	return s.inTurn
}

// Len returns the number of committed turns
func (s *State) Len() int {
	return len(s.turns)
}

// Append adds an already committed turn to the log, e.g. when restoring a
// transcript. Insertion order is chronological order.
func (s *State) Append(turn models.Turn) error {
	if s.inTurn {
		return models.InvalidState("append during user turn %d", s.userTurn)
	}
	if turn.SessionID == "" {
		turn.SessionID = s.id
	}
	if turn.SessionID != s.id {
		return models.InvalidState("turn %s belongs to session %s", turn.TurnID, turn.SessionID)
	}
	if turn.UserTurn > s.userTurn {
		s.userTurn = turn.UserTurn
	}
	s.turns = append(s.turns, turn)
	return nil
}

// Turns returns a copy of the committed turns
func (s *State) Turns() []models.Turn {
	out := make([]models.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Current returns a copy of the turns staged in the in-progress user turn
func (s *State) Current() []models.Turn {
	out := make([]models.Turn, len(s.staged))
	copy(out, s.staged)
	return out
}

// Flags returns a snapshot of the flags
func (s *State) Flags() models.Flags {
	return s.flags
}

// SetFlag mutates a flag. Setting last_agent also records the user turn it was set in.
func (s *State) SetFlag(name models.FlagName, value string) error {
	if err := s.flags.Set(name, value); err != nil {
		return err
	}
	if name == models.FlagLastAgent {
		s.flags.LastAgentTurn = s.userTurn
	}
	return nil
}

// BeginUserTurn opens a new user turn and remembers the flags so a failed turn
// can be rolled back
func (s *State) BeginUserTurn() (int, error) {
	if s.inTurn {
		return 0, models.InvalidState("user turn %d still open", s.userTurn)
	}
	s.userTurn++
	s.inTurn = true
	s.staged = s.staged[:0]
	s.saved = s.flags
	return s.userTurn, nil
}

// Stage records a turn of the in-progress user turn. The cycle number is the
// position within the user turn.
func (s *State) Stage(turn models.Turn) (models.Turn, error) {
	if !s.inTurn {
		return turn, models.InvalidState("stage outside a user turn")
	}
	if n := len(s.staged); n > 0 && s.staged[n-1].Agent == models.Finish {
		return turn, models.InvalidState("dispatch after FINISH in user turn %d", s.userTurn)
	}
	turn.SessionID = s.id
	turn.UserTurn = s.userTurn
	turn.Cycle = len(s.staged)
	s.staged = append(s.staged, turn)
	return turn, nil
}

// Commit appends the staged turns to the log and closes the user turn
func (s *State) Commit() ([]models.Turn, error) {
	if !s.inTurn {
		return nil, models.InvalidState("commit outside a user turn")
	}
	committed := make([]models.Turn, len(s.staged))
	copy(committed, s.staged)
	s.turns = append(s.turns, committed...)
	s.staged = s.staged[:0]
	s.inTurn = false
	return committed, nil
}

// Discard drops the staged turns, restores the flags captured at BeginUserTurn
// and closes the user turn. Committed turns are untouched.
func (s *State) Discard() {
	if !s.inTurn {
		return
	}
	s.staged = s.staged[:0]
	s.flags = s.saved
	s.userTurn--
	s.inTurn = false
}

// RestoreFlags replaces the flags wholesale
func (s *State) RestoreFlags(f models.Flags) {
	s.flags = f
}

// Snapshot returns the read-only projection handed to responders
func (s *State) Snapshot(utterance string, passages []models.Passage, profile *models.StudentProfile) models.Snapshot {
	snap := models.Snapshot{
		SessionID: s.id,
		Utterance: utterance,
		Flags:     s.flags,
		History:   s.Turns(),
		Current:   s.Current(),
	}
	if len(passages) > 0 {
		snap.Passages = make([]models.Passage, len(passages))
		copy(snap.Passages, passages)
	}
	if profile != nil {
		p := *profile
		snap.Profile = &p
	}
	return snap
}
