// Package session implements the per-conversation state machine driving a
// counseling dialogue: intake data, the counseling plan, the phased trust
// model, and the append-only transcript.
//
// A Session is owned by exactly one conversation and is not synchronized;
// callers running sessions concurrently wrap each one in its own lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/counselsim/internal/gateway"
	"github.com/fyrsmithlabs/counselsim/internal/metrics"
	"github.com/fyrsmithlabs/counselsim/internal/policy"
	"github.com/fyrsmithlabs/counselsim/internal/prompt"
)

// Greeting seeds every session's transcript as the counselor's opening
// utterance.
const Greeting = "Hello, I'm glad you came in today. What would you like to talk about?"

// keepRecent is how many utterances after the greeting stay in rendered
// history for counselor prompts.
const keepRecent = 10

// ErrPrecondition indicates an operation ran before the session fields it
// needs were set.
var ErrPrecondition = errors.New("session precondition not met")

// Role identifies the speaker of a transcript utterance.
type Role string

const (
	RoleCounselor Role = "Counselor"
	RoleClient    Role = "Client"
)

// Utterance is one transcript entry.
type Utterance struct {
	Role    Role   `json:"role"`
	Message string `json:"message"`
}

// Session holds one conversation's mutable state. Mutations happen only
// through Start, EnsurePlan, Step, and RecordTrust; history is append-only.
type Session struct {
	gw      gateway.Gateway
	prompts *prompt.Store
	logger  *zap.Logger
	metrics *metrics.Metrics

	temperature float64
	model       string

	intakeForm   string
	reason       string
	technique    *string
	plan         string
	phase        policy.Phase
	trustHistory []int
	history      []Utterance
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches session metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithTemperature sets the sampling temperature for dialogue calls.
func WithTemperature(t float64) Option {
	return func(s *Session) {
		s.temperature = t
	}
}

// WithModel overrides the gateway's default model for dialogue calls.
func WithModel(model string) Option {
	return func(s *Session) {
		s.model = model
	}
}

// New creates an uninitialized Session over the gateway and prompt store.
func New(gw gateway.Gateway, prompts *prompt.Store, opts ...Option) *Session {
	s := &Session{
		gw:          gw,
		prompts:     prompts,
		logger:      zap.NewNop(),
		temperature: 0.7,
		phase:       policy.PhaseTrustBuilding,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start sets the intake form and counseling reason, seeds the transcript
// with the fixed greeting plus the optional first client utterance, and
// produces the counseling plan.
func (s *Session) Start(ctx context.Context, intakeForm, reason, firstClientMessage string) error {
	s.intakeForm = intakeForm
	s.reason = reason
	s.history = []Utterance{{Role: RoleCounselor, Message: Greeting}}
	if firstClientMessage != "" {
		s.history = append(s.history, Utterance{Role: RoleClient, Message: firstClientMessage})
	}
	return s.EnsurePlan(ctx)
}

// EnsurePlan produces the technique and counseling plan once. It is
// idempotent: an existing plan is kept untouched.
func (s *Session) EnsurePlan(ctx context.Context) error {
	if err := s.checkStarted(); err != nil {
		return err
	}
	if s.plan != "" {
		return nil
	}

	p, err := s.prompts.Render(prompt.TemplateCounselorPlan, map[string]any{
		"intake_form": s.intakeForm,
		"reason":      s.reason,
		"history":     s.renderHistory(),
	})
	if err != nil {
		return fmt.Errorf("rendering plan prompt: %w", err)
	}

	reply, err := s.gw.Complete(ctx, gateway.Request{
		Messages:    []gateway.Message{{Role: gateway.RoleUser, Content: p}},
		Temperature: s.temperature,
		Model:       s.model,
	})
	if err != nil {
		return fmt.Errorf("planning call: %w", err)
	}

	s.technique, s.plan = splitPlan(reply)
	s.logger.Debug("counseling plan set",
		zap.Bool("technique_identified", s.technique != nil),
		zap.Int("plan_chars", len(s.plan)),
	)
	return nil
}

// Step appends the client message, obtains the counselor's reply, and
// appends the sanitized reply. Exactly two utterances join the transcript
// per call.
func (s *Session) Step(ctx context.Context, clientMessage string) (string, error) {
	if err := s.checkStarted(); err != nil {
		return "", err
	}
	if err := s.EnsurePlan(ctx); err != nil {
		return "", err
	}

	s.history = append(s.history, Utterance{Role: RoleClient, Message: clientMessage})

	p, err := s.prompts.Render(prompt.TemplateCounselorStep, map[string]any{
		"intake_form": s.intakeForm,
		"reason":      s.reason,
		"technique":   s.techniqueText(),
		"plan":        s.plan,
		"history":     s.renderHistory(),
	})
	if err != nil {
		return "", fmt.Errorf("rendering counselor prompt: %w", err)
	}

	reply, err := s.gw.Complete(ctx, gateway.Request{
		Messages:    []gateway.Message{{Role: gateway.RoleUser, Content: p}},
		Temperature: s.temperature,
		Model:       s.model,
	})
	if err != nil {
		return "", fmt.Errorf("counselor call: %w", err)
	}

	utterance := sanitizeReply(reply)
	s.history = append(s.history, Utterance{Role: RoleCounselor, Message: utterance})
	s.metrics.RecordSessionTurn()
	return utterance, nil
}

// RecordTrust appends an openness score and advances the phase through the
// policy transition. The phase never moves backwards.
func (s *Session) RecordTrust(score int) {
	s.trustHistory = append(s.trustHistory, score)
	s.phase = policy.NextPhase(s.phase, score)
}

func (s *Session) checkStarted() error {
	if strings.TrimSpace(s.intakeForm) == "" {
		return fmt.Errorf("%w: intake form not set", ErrPrecondition)
	}
	if strings.TrimSpace(s.reason) == "" {
		return fmt.Errorf("%w: counseling reason not set", ErrPrecondition)
	}
	return nil
}

// renderHistory renders the greeting plus the last utterances as labeled
// lines for counselor prompts.
func (s *Session) renderHistory() string {
	trimmed := trimHistory(s.history, keepRecent)
	lines := make([]string, 0, len(trimmed))
	for _, u := range trimmed {
		lines = append(lines, string(u.Role)+": "+u.Message)
	}
	return strings.Join(lines, "\n")
}

// trimHistory keeps the greeting and the last keep utterances after it.
func trimHistory(h []Utterance, keep int) []Utterance {
	if len(h) <= 1 {
		return h
	}
	tail := h[1:]
	if len(tail) > keep {
		tail = tail[len(tail)-keep:]
	}
	out := make([]Utterance, 0, 1+len(tail))
	out = append(out, h[0])
	return append(out, tail...)
}

func (s *Session) techniqueText() string {
	if s.technique == nil {
		return ""
	}
	return *s.technique
}

// IntakeForm returns the intake text block.
func (s *Session) IntakeForm() string { return s.intakeForm }

// Reason returns the counseling reason.
func (s *Session) Reason() string { return s.reason }

// Plan returns the counseling plan, empty before EnsurePlan.
func (s *Session) Plan() string { return s.plan }

// Technique returns the identified technique, nil when the planner's reply
// carried no recognizable label.
func (s *Session) Technique() *string {
	if s.technique == nil {
		return nil
	}
	t := *s.technique
	return &t
}

// Phase returns the current conversation phase.
func (s *Session) Phase() policy.Phase { return s.phase }

// TrustHistory returns a copy of the recorded openness scores.
func (s *Session) TrustHistory() []int {
	out := make([]int, len(s.trustHistory))
	copy(out, s.trustHistory)
	return out
}

// History returns a copy of the transcript.
func (s *Session) History() []Utterance {
	out := make([]Utterance, len(s.history))
	copy(out, s.history)
	return out
}
