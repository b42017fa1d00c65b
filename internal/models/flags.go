// ABOUTME: Named per-session flags the Supervisor mutates after each dispatch
// ABOUTME: Flags are read by the routing decision on the next cycle
package models

import "fmt"

// FlagName identifies one of the supervisor-owned session flags
type FlagName string

const (
	FlagLastAgent            FlagName = "last_agent"
	FlagLastTopic            FlagName = "last_topic"
	FlagAwaitingEvaluationOf FlagName = "awaiting_evaluation_of"
	FlagLastSummary          FlagName = "last_summary"
)

// Flags is the latest per-turn state of a conversation
type Flags struct {
	LastAgent            Agent  `json:"last_agent,omitempty"`
	LastTopic            string `json:"last_topic,omitempty"`
	AwaitingEvaluationOf Agent  `json:"awaiting_evaluation_of,omitempty"`
	LastSummary          string `json:"last_summary,omitempty"`

	// LastAgentTurn is the user turn in which LastAgent was set
	LastAgentTurn int `json:"last_agent_turn"`
}

// Set assigns a flag by name. Agent-valued flags accept "" to clear them.
func (f *Flags) Set(name FlagName, value string) error {
	switch name {
	case FlagLastAgent, FlagAwaitingEvaluationOf:
		a := Agent(value)
		if a != AgentNone && !a.IsResponder() {
			return fmt.Errorf("flag %s: %q is not a responder", name, value)
		}
		if name == FlagLastAgent {
			f.LastAgent = a
		} else {
			f.AwaitingEvaluationOf = a
		}
	case FlagLastTopic:
		f.LastTopic = value
	case FlagLastSummary:
		f.LastSummary = value
	default:
		return fmt.Errorf("unknown flag %q", name)
	}
	return nil
}

// Get returns a flag value by name
func (f Flags) Get(name FlagName) (string, bool) {
	switch name {
	case FlagLastAgent:
		return string(f.LastAgent), f.LastAgent != AgentNone
	case FlagAwaitingEvaluationOf:
		return string(f.AwaitingEvaluationOf), f.AwaitingEvaluationOf != AgentNone
	case FlagLastTopic:
		return f.LastTopic, f.LastTopic != ""
	case FlagLastSummary:
		return f.LastSummary, f.LastSummary != ""
	}
	return "", false
}
