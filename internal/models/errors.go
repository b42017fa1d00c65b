// ABOUTME: Error taxonomy of the routing engine
// ABOUTME: Recoverable conditions are annotated on turns; InvalidState aborts the user turn
package models

import (
	"errors"
	"fmt"
)

var (
	// ErrClassifierUnavailable means the classifier failed, timed out or returned a malformed result
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrResponderFailure means a specialized responder failed or timed out
	ErrResponderFailure = errors.New("responder failure")

	// ErrRoutingLoopGuard marks a FINISH forced by the dispatch cycle guard.
	// It is never returned to callers of the supervisor.
	ErrRoutingLoopGuard = errors.New("routing loop guard triggered")

	// ErrInvalidState is an internal invariant violation that aborts the current user turn
	ErrInvalidState = errors.New("invalid state")
)

// ClassifierUnavailable wraps err as ErrClassifierUnavailable
func ClassifierUnavailable(err error) error {
	if err == nil {
		return ErrClassifierUnavailable
	}
	return fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)
}

// ResponderFailure wraps err as ErrResponderFailure for the given agent
func ResponderFailure(agent Agent, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrResponderFailure, agent)
	}
	return fmt.Errorf("%w: %s: %w", ErrResponderFailure, agent, err)
}

// InvalidState builds an ErrInvalidState with a formatted reason
func InvalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
