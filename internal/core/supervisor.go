// ABOUTME: Supervisor is the hub-and-spoke routing state machine of the tutor
// ABOUTME: Decides the next responder after every step and when a user turn is finished
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harper/tutor/internal/models"
	"github.com/harper/tutor/internal/session"
)

// Classifier maps an utterance and its context hint to an intent label
type Classifier interface {
	Classify(ctx context.Context, req models.ClassifyRequest) (models.Classification, error)
}

// ClassifierFunc adapts a function to Classifier
type ClassifierFunc func(ctx context.Context, req models.ClassifyRequest) (models.Classification, error)

// Classify calls f
func (f ClassifierFunc) Classify(ctx context.Context, req models.ClassifyRequest) (models.Classification, error) {
	return f(ctx, req)
}

// Responder is a specialized responder
type Responder interface {
	Respond(ctx context.Context, utterance string, snap models.Snapshot) (models.Response, error)
}

// ResponderFunc adapts a function to Responder
type ResponderFunc func(ctx context.Context, utterance string, snap models.Snapshot) (models.Response, error)

// Respond calls f
func (f ResponderFunc) Respond(ctx context.Context, utterance string, snap models.Snapshot) (models.Response, error) {
	return f(ctx, utterance, snap)
}

// PassageFetcher supplies supporting passages for responders
type PassageFetcher interface {
	Fetch(ctx context.Context, query, topicHint string) ([]models.Passage, error)
}

// Formatter turns the turns of one user turn into the visible reply
type Formatter interface {
	Format(turns []models.Turn) string
}

// TranscriptSink persists committed turns
type TranscriptSink interface {
	SaveTurns(sessionID string, turns []models.Turn) error
}

// ErrEmptyUtterance is returned by Handle for blank input
var ErrEmptyUtterance = errors.New("utterance cannot be empty")

// Policy holds the tunable routing parameters
type Policy struct {
	// MaxCycles is the maximum number of dispatches per user turn
	MaxCycles int
	// TieMargin is the closeness margin of the mixed-intent tie-break
	TieMargin float64
	// EvaluateAnswers sends satisfied math_expert and exam_creator answers to the evaluator
	EvaluateAnswers bool
	// CallTimeout bounds every collaborator call; zero means no bound
	CallTimeout time.Duration
}

// DefaultPolicy returns the default routing policy
func DefaultPolicy() Policy {
	return Policy{
		MaxCycles:       6,
		TieMargin:       DefaultTieMargin,
		EvaluateAnswers: true,
		CallTimeout:     30 * time.Second,
	}
}

// SupervisorConfig wires the collaborators of a Supervisor
type SupervisorConfig struct {
	Classifier Classifier
	Responders map[models.Agent]Responder
	Retriever  PassageFetcher
	Finalizer  Formatter
	Sink       TranscriptSink
	Profile    func() *models.StudentProfile
	Policy     Policy
	Logger     *slog.Logger
}

// Supervisor routes utterances between responders. It holds no per-session
// state and may be shared by concurrent sessions.
type Supervisor struct {
	classifier Classifier
	responders map[models.Agent]Responder
	retriever  PassageFetcher
	finalizer  Formatter
	sink       TranscriptSink
	profile    func() *models.StudentProfile
	followUp   *FollowUpDetector
	tieBreaker *TieBreaker
	policy     Policy
	logger     *slog.Logger
}

// NewSupervisor creates a Supervisor. Every responder must be provided.
func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	if cfg.Classifier == nil {
		return nil, errors.New("classifier is required")
	}
	responders := make(map[models.Agent]Responder, len(models.Responders))
	for _, agent := range models.Responders {
		r, ok := cfg.Responders[agent]
		if !ok || r == nil {
			return nil, fmt.Errorf("missing responder for %s", agent)
		}
		responders[agent] = r
	}
	if cfg.Policy.MaxCycles <= 0 {
		return nil, fmt.Errorf("max cycles must be positive, got %d", cfg.Policy.MaxCycles)
	}
	if cfg.Policy.TieMargin < 0 || cfg.Policy.TieMargin > 1 {
		return nil, fmt.Errorf("tie margin must be within [0,1], got %v", cfg.Policy.TieMargin)
	}

	s := &Supervisor{
		classifier: cfg.Classifier,
		responders: responders,
		retriever:  cfg.Retriever,
		finalizer:  cfg.Finalizer,
		sink:       cfg.Sink,
		profile:    cfg.Profile,
		followUp:   NewFollowUpDetector(),
		tieBreaker: NewTieBreaker(cfg.Policy.TieMargin),
		policy:     cfg.Policy,
		logger:     cfg.Logger,
	}
	if s.finalizer == nil {
		s.finalizer = NewFinalizer()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// Policy returns the routing policy in effect
func (s *Supervisor) Policy() Policy {
	return s.policy
}

// Decide picks the target for the current utterance without mutating state.
// The only error it returns is the cancellation of ctx.
func (s *Supervisor) Decide(ctx context.Context, utterance string, st *session.State) (models.RoutingDecision, error) {
	flags := st.Flags()

	if flags.LastAgent != models.AgentNone && st.UserTurn()-flags.LastAgentTurn <= 1 && s.followUp.Matches(utterance) {
		return models.RoutingDecision{
			Target:      models.Evaluator,
			Rationale:   fmt.Sprintf("context override: follow-up evaluation of %s", flags.LastAgent),
			Override:    true,
			Topic:       flags.LastTopic,
			Annotations: []string{models.AnnotationContextOverride},
		}, nil
	}

	cls, err := s.classify(ctx, models.ClassifyRequest{
		Utterance: utterance,
		LastAgent: flags.LastAgent,
		LastTopic: flags.LastTopic,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.RoutingDecision{}, ctxErr
		}
		target := flags.LastAgent
		if target == models.AgentNone {
			target = models.MathExpert
		}
		return models.RoutingDecision{
			Target:      target,
			Rationale:   fmt.Sprintf("fallback to %s: %v", target, err),
			Fallback:    true,
			Topic:       flags.LastTopic,
			Annotations: []string{models.AnnotationClassifierUnavailable},
		}, nil
	}

	topic := cls.Topic
	if topic == "" {
		topic = flags.LastTopic
	}

	res := s.tieBreaker.Resolve(utterance, cls)
	if res.Applied {
		return models.RoutingDecision{
			Target:      res.Target,
			Rationale:   res.Rationale(),
			Confidence:  models.Confidence(cls.Confidence),
			TieBreak:    true,
			Topic:       topic,
			Annotations: []string{models.AnnotationTieBreak},
		}, nil
	}

	return models.RoutingDecision{
		Target:     cls.Label,
		Rationale:  fmt.Sprintf("classifier: %s (%.2f)", cls.Label, cls.Confidence),
		Confidence: models.Confidence(cls.Confidence),
		Topic:      topic,
	}, nil
}

// classify calls the classifier under the per-call timeout and rejects labels
// outside the responder set
func (s *Supervisor) classify(ctx context.Context, req models.ClassifyRequest) (models.Classification, error) {
	cls, err := callWithTimeout(ctx, s.policy.CallTimeout, func(callCtx context.Context) (models.Classification, error) {
		return s.classifier.Classify(callCtx, req)
	})
	if err != nil {
		if errors.Is(err, models.ErrClassifierUnavailable) {
			return models.Classification{}, err
		}
		return models.Classification{}, models.ClassifierUnavailable(err)
	}
	if !cls.Label.IsResponder() {
		return models.Classification{}, models.ClassifierUnavailable(fmt.Errorf("malformed label %q", cls.Label))
	}
	return cls, nil
}

// Outcome is the result of one dispatch
type Outcome struct {
	Agent    models.Agent
	Response models.Response
	Err      error
}

// Next decides what follows a dispatch. dispatches is the number of responder
// calls made so far in the user turn. It maintains the awaiting_evaluation_of flag.
func (s *Supervisor) Next(ctx context.Context, utterance string, st *session.State, out Outcome, dispatches int) (models.RoutingDecision, error) {
	decision, err := s.next(ctx, utterance, st, out, dispatches)
	if err != nil {
		return decision, err
	}

	switch {
	case decision.Target == models.Finish:
		err = st.SetFlag(models.FlagAwaitingEvaluationOf, "")
	case decision.Target == models.Evaluator && out.Err == nil && out.Response.Satisfied &&
		(out.Agent == models.MathExpert || out.Agent == models.ExamCreator):
		err = st.SetFlag(models.FlagAwaitingEvaluationOf, string(out.Agent))
	}
	if err != nil {
		return models.RoutingDecision{}, models.InvalidState("set flag: %v", err)
	}
	return decision, nil
}

func (s *Supervisor) next(ctx context.Context, utterance string, st *session.State, out Outcome, dispatches int) (models.RoutingDecision, error) {
	if dispatches >= s.policy.MaxCycles {
		return models.RoutingDecision{
			Target:         models.Finish,
			Rationale:      fmt.Sprintf("cycle guard: %d dispatches reached", s.policy.MaxCycles),
			GuardTriggered: true,
			Annotations:    []string{models.AnnotationGuardTriggered},
		}, nil
	}

	if out.Err != nil {
		if out.Agent == models.MathExpert {
			return models.RoutingDecision{
				Target:      models.Finish,
				Rationale:   fmt.Sprintf("finish after %v", out.Err),
				Fallback:    true,
				Annotations: []string{models.AnnotationResponderFailure},
			}, nil
		}
		return models.RoutingDecision{
			Target:      models.MathExpert,
			Rationale:   fmt.Sprintf("fallback to %s after %v", models.MathExpert, out.Err),
			Fallback:    true,
			Topic:       st.Flags().LastTopic,
			Annotations: []string{models.AnnotationResponderFailure},
		}, nil
	}

	resp := out.Response
	switch out.Agent {
	case models.Evaluator:
		if resp.Satisfied {
			return models.RoutingDecision{Target: models.Finish, Rationale: "evaluator approved the answer"}, nil
		}
		if target := st.Flags().AwaitingEvaluationOf; target != models.AgentNone {
			return models.RoutingDecision{
				Target:    target,
				Rationale: fmt.Sprintf("evaluator found the answer insufficient; returning to %s", target),
				Topic:     st.Flags().LastTopic,
			}, nil
		}
		return models.RoutingDecision{Target: models.Finish, Rationale: "evaluation delivered"}, nil

	case models.MathExpert, models.ExamCreator:
		if resp.Satisfied && s.policy.EvaluateAnswers {
			return models.RoutingDecision{
				Target:    models.Evaluator,
				Rationale: fmt.Sprintf("evaluate %s answer before finishing", out.Agent),
				Topic:     st.Flags().LastTopic,
			}, nil
		}
		if resp.Satisfied {
			return models.RoutingDecision{Target: models.Finish, Rationale: fmt.Sprintf("%s satisfied", out.Agent)}, nil
		}

	case models.Planning:
		if resp.Satisfied {
			return models.RoutingDecision{Target: models.Finish, Rationale: "planning satisfied"}, nil
		}

	default:
		return models.RoutingDecision{}, models.InvalidState("outcome for non-responder %q", out.Agent)
	}

	decision, err := s.Decide(ctx, utterance, st)
	if err != nil {
		return decision, err
	}
	decision.Rationale = fmt.Sprintf("%s unsatisfied; re-routing: %s", out.Agent, decision.Rationale)
	return decision, nil
}

// Reply is the result of one user turn
type Reply struct {
	SessionID      string                   `json:"session_id"`
	UserTurn       int                      `json:"user_turn"`
	Text           string                   `json:"text"`
	Decisions      []models.RoutingDecision `json:"decisions"`
	Turns          []models.Turn            `json:"turns"`
	Passages       []models.Passage         `json:"passages,omitempty"`
	GuardTriggered bool                     `json:"guard_triggered"`
}

// Handle runs one user turn: retrieval, the decide/dispatch loop and finalization.
// Recoverable collaborator failures are annotated on turns. On cancellation or
// ErrInvalidState nothing is committed and the error is returned.
func (s *Supervisor) Handle(ctx context.Context, st *session.State, utterance string) (*Reply, error) {
	if strings.TrimSpace(utterance) == "" {
		return nil, ErrEmptyUtterance
	}

	userTurn, err := st.BeginUserTurn()
	if err != nil {
		return nil, err
	}

	reply, err := s.run(ctx, st, utterance, userTurn)
	if err != nil {
		st.Discard()
		if errors.Is(err, models.ErrInvalidState) {
			s.logger.Error("user turn aborted", "session", st.ID(), "user_turn", userTurn, "error", err)
		}
		return nil, err
	}

	committed, err := st.Commit()
	if err != nil {
		st.Discard()
		return nil, err
	}
	reply.Turns = committed
	reply.Text = s.finalizer.Format(committed)

	if s.sink != nil {
		if err := s.sink.SaveTurns(st.ID(), committed); err != nil {
			s.logger.Warn("failed to persist turns", "session", st.ID(), "error", err)
		}
	}
	return reply, nil
}

func (s *Supervisor) run(ctx context.Context, st *session.State, utterance string, userTurn int) (*Reply, error) {
	reply := &Reply{SessionID: st.ID(), UserTurn: userTurn}
	reply.Passages = s.retrieve(ctx, st, utterance)

	var profile *models.StudentProfile
	if s.profile != nil {
		profile = s.profile()
	}

	decision, err := s.Decide(ctx, utterance, st)
	if err != nil {
		return nil, err
	}
	if err := s.awaitOverride(st, decision); err != nil {
		return nil, err
	}

	dispatches := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reply.Decisions = append(reply.Decisions, decision)
		s.logDecision(st, userTurn, len(reply.Decisions)-1, decision)

		if decision.IsTerminal() {
			if _, err := s.record(st, utterance, decision, nil); err != nil {
				return nil, err
			}
			reply.GuardTriggered = decision.GuardTriggered
			return reply, nil
		}

		agent := decision.Target
		responder, ok := s.responders[agent]
		if !ok {
			return nil, models.InvalidState("no responder for %q", agent)
		}

		snap := st.Snapshot(utterance, reply.Passages, profile)
		resp, respErr := callWithTimeout(ctx, s.policy.CallTimeout, func(callCtx context.Context) (models.Response, error) {
			return responder.Respond(callCtx, utterance, snap)
		})
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dispatches++

		out := Outcome{Agent: agent, Response: resp}
		if respErr != nil {
			out.Err = models.ResponderFailure(agent, respErr)
			s.logger.Warn("responder failed", "session", st.ID(), "agent", agent, "error", respErr)
		}
		if _, err := s.record(st, utterance, decision, &out); err != nil {
			return nil, err
		}
		if err := s.applyFlags(st, decision, out); err != nil {
			return nil, err
		}

		decision, err = s.Next(ctx, utterance, st, out, dispatches)
		if err != nil {
			return nil, err
		}
	}
}

// retrieve fetches passages; failures degrade to no supporting content
func (s *Supervisor) retrieve(ctx context.Context, st *session.State, utterance string) []models.Passage {
	if s.retriever == nil {
		return nil
	}
	passages, err := callWithTimeout(ctx, s.policy.CallTimeout, func(callCtx context.Context) ([]models.Passage, error) {
		return s.retriever.Fetch(callCtx, utterance, st.Flags().LastTopic)
	})
	if err != nil {
		s.logger.Warn("retrieval failed", "session", st.ID(), "error", err)
		return nil
	}
	return passages
}

// record stages the turn of a cycle
func (s *Supervisor) record(st *session.State, utterance string, d models.RoutingDecision, out *Outcome) (models.Turn, error) {
	turn, err := models.NewTurn(utterance, d.Target, d.Rationale)
	if err != nil {
		return models.Turn{}, models.InvalidState("record turn: %v", err)
	}
	turn.Topic = d.Topic
	turn.Annotations = decisionAnnotations(d)
	if out != nil {
		turn.Artifact = out.Response.Artifact
		turn.Satisfied = out.Err == nil && out.Response.Satisfied
		if out.Err == nil {
			turn.Summary = out.Response.Summary
		}
		if out.Err != nil {
			turn.Annotations = append(turn.Annotations, models.AnnotationResponderFailure)
		}
	}
	return st.Stage(*turn)
}

// awaitOverride marks the answer a student asked to have evaluated so an
// insufficient verdict sends the turn back to its author
func (s *Supervisor) awaitOverride(st *session.State, d models.RoutingDecision) error {
	if !d.Override {
		return nil
	}
	last := st.Flags().LastAgent
	if last != models.MathExpert && last != models.ExamCreator {
		return nil
	}
	if err := st.SetFlag(models.FlagAwaitingEvaluationOf, string(last)); err != nil {
		return models.InvalidState("set awaiting_evaluation_of: %v", err)
	}
	return nil
}

// applyFlags updates last_agent, last_topic and last_summary after a dispatch
func (s *Supervisor) applyFlags(st *session.State, d models.RoutingDecision, out Outcome) error {
	if out.Err != nil {
		return nil
	}
	if err := st.SetFlag(models.FlagLastAgent, string(out.Agent)); err != nil {
		return models.InvalidState("set last_agent: %v", err)
	}
	if d.Topic != "" {
		if err := st.SetFlag(models.FlagLastTopic, d.Topic); err != nil {
			return models.InvalidState("set last_topic: %v", err)
		}
	}
	if out.Response.Summary != "" {
		if err := st.SetFlag(models.FlagLastSummary, out.Response.Summary); err != nil {
			return models.InvalidState("set last_summary: %v", err)
		}
	}
	return nil
}

func (s *Supervisor) logDecision(st *session.State, userTurn, cycle int, d models.RoutingDecision) {
	s.logger.Debug("routing decision",
		"session", st.ID(),
		"user_turn", userTurn,
		"cycle", cycle,
		"target", d.Target,
		"rationale", d.Rationale,
		"fallback", d.Fallback,
		"override", d.Override,
		"guard", d.GuardTriggered,
	)
}

func decisionAnnotations(d models.RoutingDecision) []string {
	if len(d.Annotations) == 0 {
		return nil
	}
	a := make([]string, len(d.Annotations))
	copy(a, d.Annotations)
	return a
}

// callWithTimeout runs fn under a per-call timeout. A collaborator that ignores
// its context is abandoned when the deadline passes.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-callCtx.Done():
		var zero T
		return zero, callCtx.Err()
	}
}
