// ABOUTME: Agent enum and routing decision types for the Supervisor
// ABOUTME: Defines the closed set of dispatch targets including the terminal FINISH
package models

import (
	"fmt"
	"strings"
)

// Agent is a dispatch target chosen by the Supervisor
type Agent string

const (
	// AgentNone means no agent has been dispatched yet
	AgentNone Agent = ""

	// MathExpert explains mathematical concepts and solves problems
	MathExpert Agent = "math_expert"

	// ExamCreator generates exams, quizzes and practice exercises
	ExamCreator Agent = "exam_creator"

	// Evaluator judges the quality of a prior answer
	Evaluator Agent = "evaluator"

	// Planning builds study plans
	Planning Agent = "planning"

	// Finish ends the current user turn and hands off to the Finalizer
	Finish Agent = "FINISH"
)

// Responders lists the specialized responders in declaration order
var Responders = []Agent{MathExpert, ExamCreator, Evaluator, Planning}

// IsValid checks if the agent is a known dispatch target
func (a Agent) IsValid() bool {
	switch a {
	case MathExpert, ExamCreator, Evaluator, Planning, Finish:
		return true
	default:
		return false
	}
}

// IsResponder reports whether the agent is a specialized responder (not FINISH)
func (a Agent) IsResponder() bool {
	return a.IsValid() && a != Finish
}

// ParseAgent converts a label into an Agent, tolerating case and surrounding space
func ParseAgent(label string) (Agent, error) {
	trimmed := strings.TrimSpace(label)
	if strings.EqualFold(trimmed, string(Finish)) {
		return Finish, nil
	}
	a := Agent(strings.ToLower(trimmed))
	if !a.IsValid() {
		return AgentNone, fmt.Errorf("unknown agent %q", label)
	}
	return a, nil
}

// RoutingDecision is the Supervisor's choice for one cycle. It is never persisted
// beyond the cycle that produced it, apart from the rationale copied into a Turn.
type RoutingDecision struct {
	Target     Agent    `json:"target"`
	Rationale  string   `json:"rationale"`
	Confidence *float64 `json:"confidence,omitempty"`
	// Topic is the subject carried into the last_topic flag
	Topic string `json:"topic,omitempty"`
	// Annotations are copied onto the turn recorded for this decision
	Annotations []string `json:"annotations,omitempty"`

	// Override is set when the context override rule chose the target
	Override bool `json:"override,omitempty"`
	// Fallback is set when the classifier failed and a fallback target was used
	Fallback bool `json:"fallback,omitempty"`
	// TieBreak is set when the mixed-intent tie-break policy chose the target
	TieBreak bool `json:"tie_break,omitempty"`
	// GuardTriggered is set on a FINISH forced by the dispatch cycle guard
	GuardTriggered bool `json:"guard_triggered,omitempty"`
}

// IsTerminal reports whether the decision ends the user turn
func (d RoutingDecision) IsTerminal() bool {
	return d.Target == Finish
}

// Score returns the confidence or -1 when the decision carries none
func (d RoutingDecision) Score() float64 {
	if d.Confidence == nil {
		return -1
	}
	return *d.Confidence
}

// Confidence is a helper to take the address of a literal score
func Confidence(v float64) *float64 {
	return &v
}
