// ABOUTME: Routing benchmark runner: decides every test case against a fresh session
// ABOUTME: Cases run concurrently; results keep the input order
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harper/tutor/internal/logging"
	"github.com/harper/tutor/internal/models"
	"github.com/harper/tutor/internal/session"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent routing calls
const DefaultWorkers = 4

// Decider is the routing step under test
type Decider interface {
	Decide(ctx context.Context, utterance string, st *session.State) (models.RoutingDecision, error)
}

// Result is the outcome of one test case
type Result struct {
	ID             string       `json:"id"`
	Query          string       `json:"consulta"`
	ExpectedAgent  models.Agent `json:"expected_agent"`
	PredictedAgent models.Agent `json:"predicted_agent"`
	Difficulty     string       `json:"difficulty"`
	Category       string       `json:"category"`
	Correct        bool         `json:"correct"`
	Rationale      string       `json:"rationale,omitempty"`
	Override       bool         `json:"override,omitempty"`
	TieBreak       bool         `json:"tie_break,omitempty"`
	Fallback       bool         `json:"fallback,omitempty"`
	LatencyMS      float64      `json:"latency_ms"`
}

// Runner executes routing benchmarks
type Runner struct {
	decider Decider
	workers int
	logger  *slog.Logger
}

// NewRunner creates a runner; workers below one selects DefaultWorkers
func NewRunner(decider Decider, workers int, logger *slog.Logger) *Runner {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{decider: decider, workers: workers, logger: logger}
}

// Run decides every case. A cancelled ctx stops the run.
func (r *Runner) Run(ctx context.Context, cases []TestCase) ([]Result, error) {
	results := make([]Result, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, tc := range cases {
		g.Go(func() error {
			res, err := r.runCase(gctx, tc)
			if err != nil {
				return fmt.Errorf("case %s: %w", tc.ID, err)
			}
			results[i] = res
			r.logger.Debug("case routed", "id", tc.ID, "expected", tc.ExpectedAgent,
				"predicted", res.PredictedAgent, "correct", res.Correct, "latency_ms", res.LatencyMS)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) runCase(ctx context.Context, tc TestCase) (Result, error) {
	st := seedState(tc)

	start := time.Now()
	d, err := r.decider.Decide(ctx, tc.Query, st)
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, err
	}

	return Result{
		ID:             tc.ID,
		Query:          tc.Query,
		ExpectedAgent:  tc.ExpectedAgent,
		PredictedAgent: d.Target,
		Difficulty:     tc.Difficulty,
		Category:       tc.Category,
		Correct:        d.Target == tc.ExpectedAgent,
		Rationale:      d.Rationale,
		Override:       d.Override,
		TieBreak:       d.TieBreak,
		Fallback:       d.Fallback,
		LatencyMS:      float64(elapsed.Microseconds()) / 1000,
	}, nil
}

// seedState builds the session a case is routed in. The session sits at the
// start of a user turn TurnsAgo turns after LastAgent answered.
func seedState(tc TestCase) *session.State {
	st := session.New("bench_" + tc.ID)
	if tc.Context == nil {
		return st
	}
	st.RestoreFlags(models.Flags{
		LastAgent:     tc.Context.LastAgent,
		LastTopic:     tc.Context.LastTopic,
		LastAgentTurn: -tc.Context.TurnsAgo,
	})
	return st
}
