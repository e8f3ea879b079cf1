// Package simulate drives full counseling dialogues: a session on one side
// and a persona-playing client agent (or a scripted scenario) on the other,
// with trust re-evaluated on the policy cadence until the run stops.
package simulate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/counselsim/internal/casedata"
	"github.com/fyrsmithlabs/counselsim/internal/gateway"
	"github.com/fyrsmithlabs/counselsim/internal/metrics"
	"github.com/fyrsmithlabs/counselsim/internal/policy"
	"github.com/fyrsmithlabs/counselsim/internal/prompt"
	"github.com/fyrsmithlabs/counselsim/internal/scenario"
	"github.com/fyrsmithlabs/counselsim/internal/session"
)

// DefaultMaxTurns caps a run when neither the runner nor the scenario sets
// a limit.
const DefaultMaxTurns = 20

// StopCause says why a run ended.
type StopCause string

const (
	StopGoalReached     StopCause = "goal_reached"
	StopMaxTurns        StopCause = "max_turns"
	StopScriptExhausted StopCause = "script_exhausted"
)

// Transcript is the result of one simulation run.
type Transcript struct {
	CaseID       string              `json:"case_id"`
	Turns        int                 `json:"turns"`
	FinalPhase   policy.Phase        `json:"final_phase"`
	TrustHistory []int               `json:"trust_history"`
	StopCause    StopCause           `json:"stop_cause"`
	Technique    *string             `json:"technique"`
	Plan         string              `json:"plan"`
	History      []session.Utterance `json:"history"`
}

// Runner owns the outer dialogue loop.
type Runner struct {
	gw      gateway.Gateway
	prompts *prompt.Store
	logger  *zap.Logger
	metrics *metrics.Metrics

	maxTurns    int
	temperature float64
	model       string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics attaches run metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithMaxTurns sets the default turn cap; a scenario's max_turns wins when
// set.
func WithMaxTurns(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithTemperature sets the sampling temperature for all dialogue calls.
func WithTemperature(t float64) Option {
	return func(r *Runner) {
		r.temperature = t
	}
}

// WithModel overrides the gateway's default model.
func WithModel(model string) Option {
	return func(r *Runner) {
		r.model = model
	}
}

// New creates a Runner over the gateway and prompt store.
func New(gw gateway.Gateway, prompts *prompt.Store, opts ...Option) *Runner {
	r := &Runner{
		gw:          gw,
		prompts:     prompts,
		logger:      zap.NewNop(),
		maxTurns:    DefaultMaxTurns,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run simulates a full dialogue for the case record. A scenario, when
// given, scripts the client messages and may override the turn cap;
// otherwise the client agent improvises from the persona. Trust is
// re-evaluated every TrustEvalInterval turns, and once the session reaches
// solution exploration the same cadence asks the client whether the
// counseling goal is met.
func (r *Runner) Run(ctx context.Context, rec casedata.Record, sc *scenario.Scenario) (*Transcript, error) {
	persona := casedata.NormalizePersona(rec)
	intake, reason := casedata.IntakeReason(rec)

	maxTurns := r.maxTurns
	first := ""
	var script []string
	if sc != nil {
		first = sc.FirstClientMessage
		script = sc.ClientMessages
		if sc.MaxTurns > 0 {
			maxTurns = sc.MaxTurns
		}
	}
	scripted := len(script) > 0

	sess := session.New(r.gw, r.prompts,
		session.WithLogger(r.logger),
		session.WithMetrics(r.metrics),
		session.WithTemperature(r.temperature),
		session.WithModel(r.model),
	)
	if err := sess.Start(ctx, intake, reason, first); err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}

	agent := &clientAgent{
		gw:          r.gw,
		prompts:     r.prompts,
		persona:     persona,
		temperature: r.temperature,
		model:       r.model,
	}
	interval := policy.TrustEvalInterval(rec.String("resistance_level"))

	r.logger.Info("simulation started",
		zap.String("case_id", rec.ID()),
		zap.Int("max_turns", maxTurns),
		zap.Int("trust_interval", interval),
		zap.Bool("scripted", scripted),
	)

	cause := StopMaxTurns
	completed := 0

loop:
	for completed < maxTurns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var msg string
		if scripted {
			if completed >= len(script) {
				cause = StopScriptExhausted
				break
			}
			msg = script[completed]
		} else {
			m, err := agent.nextMessage(ctx, sess.Phase(), sess.History())
			if err != nil {
				return nil, fmt.Errorf("client agent on turn %d: %w", completed+1, err)
			}
			msg = m
		}

		if _, err := sess.Step(ctx, msg); err != nil {
			return nil, fmt.Errorf("turn %d: %w", completed+1, err)
		}
		completed++

		if completed%interval != 0 {
			continue
		}

		score, ok, err := agent.trustScore(ctx, sess.History())
		if err != nil {
			return nil, fmt.Errorf("trust evaluation on turn %d: %w", completed, err)
		}
		if ok {
			sess.RecordTrust(score)
			r.logger.Debug("trust recorded",
				zap.Int("turn", completed),
				zap.Int("score", score),
				zap.String("phase", string(sess.Phase())),
			)
		} else {
			r.logger.Debug("trust answer unparseable, skipped", zap.Int("turn", completed))
		}

		if sess.Phase() == policy.PhaseSolutionExploration {
			done, ok, err := agent.goalReached(ctx, sess.History())
			if err != nil {
				return nil, fmt.Errorf("goal check on turn %d: %w", completed, err)
			}
			if ok && done {
				cause = StopGoalReached
				break loop
			}
		}
	}

	r.logger.Info("simulation finished",
		zap.String("case_id", rec.ID()),
		zap.Int("turns", completed),
		zap.String("stop_cause", string(cause)),
		zap.String("final_phase", string(sess.Phase())),
	)

	return &Transcript{
		CaseID:       rec.ID(),
		Turns:        completed,
		FinalPhase:   sess.Phase(),
		TrustHistory: sess.TrustHistory(),
		StopCause:    cause,
		Technique:    sess.Technique(),
		Plan:         sess.Plan(),
		History:      sess.History(),
	}, nil
}
