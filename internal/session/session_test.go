package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/counselsim/internal/gateway"
	"github.com/fyrsmithlabs/counselsim/internal/policy"
	"github.com/fyrsmithlabs/counselsim/internal/prompt"
)

const planReply = "CBT technique: Cognitive restructuring\n" +
	"Counseling plan:\n" +
	"1. Establish rapport\n" +
	"2. Identify automatic thoughts\n" +
	"3. Examine the evidence\n" +
	"4. Practice balanced alternatives\n" +
	"5. Plan relapse prevention"

const intakeBlock = "Name: Laura\nAge: 45\nGender: female"
const reasonText = "Persistent anxiety at work."

func newTestSession(stub *gateway.Stub) *Session {
	return New(stub, prompt.New(nil))
}

func TestStepBeforeStart(t *testing.T) {
	s := newTestSession(gateway.NewStub())

	_, err := s.Step(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrecondition)

	err = s.EnsurePlan(context.Background())
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestStartRequiresIntakeAndReason(t *testing.T) {
	s := newTestSession(gateway.NewStub(planReply))
	err := s.Start(context.Background(), "", reasonText, "")
	assert.ErrorIs(t, err, ErrPrecondition)

	s = newTestSession(gateway.NewStub(planReply))
	err = s.Start(context.Background(), intakeBlock, "   ", "")
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestStartSeedsGreeting(t *testing.T) {
	stub := gateway.NewStub(planReply)
	s := newTestSession(stub)

	require.NoError(t, s.Start(context.Background(), intakeBlock, reasonText, ""))

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, RoleCounselor, history[0].Role)
	assert.Equal(t, Greeting, history[0].Message)

	require.NotNil(t, s.Technique())
	assert.Equal(t, "Cognitive restructuring", *s.Technique())
	assert.Contains(t, s.Plan(), "1. Establish rapport")
	assert.Equal(t, policy.PhaseTrustBuilding, s.Phase())
}

func TestStartWithFirstClientMessage(t *testing.T) {
	stub := gateway.NewStub(planReply)
	s := newTestSession(stub)

	require.NoError(t, s.Start(context.Background(), intakeBlock, reasonText, "I have been feeling on edge."))

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, RoleClient, history[1].Role)
	assert.Equal(t, "I have been feeling on edge.", history[1].Message)
}

func TestEnsurePlanIdempotent(t *testing.T) {
	stub := gateway.NewStub(planReply)
	s := newTestSession(stub)

	require.NoError(t, s.Start(context.Background(), intakeBlock, reasonText, ""))
	require.Equal(t, 1, stub.CallCount())

	require.NoError(t, s.EnsurePlan(context.Background()))
	require.NoError(t, s.EnsurePlan(context.Background()))
	assert.Equal(t, 1, stub.CallCount(), "an existing plan must not be regenerated")
}

func TestStepAppendsExactlyTwo(t *testing.T) {
	stub := gateway.NewStub(planReply, "Counselor: It sounds like work has been weighing on you.")
	s := newTestSession(stub)

	require.NoError(t, s.Start(context.Background(), intakeBlock, reasonText, ""))
	before := s.History()

	reply, err := s.Step(context.Background(), "I can't stop worrying about my classes.")
	require.NoError(t, err)
	assert.Equal(t, "It sounds like work has been weighing on you.", reply)

	after := s.History()
	require.Len(t, after, len(before)+2)
	assert.Equal(t, before, after[:len(before)], "earlier entries must be unchanged")
	assert.Equal(t, Utterance{Role: RoleClient, Message: "I can't stop worrying about my classes."}, after[len(after)-2])
	assert.Equal(t, Utterance{Role: RoleCounselor, Message: reply}, after[len(after)-1])
}

func TestStepPromptCarriesPlanAndIntake(t *testing.T) {
	stub := gateway.NewStub(planReply, "Tell me more about that.")
	s := newTestSession(stub)

	require.NoError(t, s.Start(context.Background(), intakeBlock, reasonText, ""))
	_, err := s.Step(context.Background(), "hello")
	require.NoError(t, err)

	calls := stub.Calls()
	require.Len(t, calls, 2)
	stepPrompt := calls[1].Messages[0].Content
	assert.Contains(t, stepPrompt, "Name: Laura")
	assert.Contains(t, stepPrompt, reasonText)
	assert.Contains(t, stepPrompt, "1. Establish rapport")
	assert.Contains(t, stepPrompt, "Client: hello")
}

func TestStepRecoversWhenPlanningFailed(t *testing.T) {
	calls := 0
	stub := gateway.NewStubFunc(func(gateway.Request) (string, error) {
		calls++
		switch calls {
		case 1:
			return "", errors.New("upstream down")
		case 2:
			return planReply, nil
		default:
			return "We can take this slowly.", nil
		}
	})
	s := newTestSession(stub)

	err := s.Start(context.Background(), intakeBlock, reasonText, "")
	require.Error(t, err)
	assert.Empty(t, s.Plan())

	// Step plans lazily, so the session recovers once the gateway does.
	reply, err := s.Step(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "We can take this slowly.", reply)
	assert.NotEmpty(t, s.Plan())
}

func TestRecordTrustAdvancesPhase(t *testing.T) {
	s := newTestSession(gateway.NewStub())

	s.RecordTrust(2)
	assert.Equal(t, policy.PhaseTrustBuilding, s.Phase())

	s.RecordTrust(3)
	assert.Equal(t, policy.PhaseCaseConceptualization, s.Phase())

	s.RecordTrust(3)
	assert.Equal(t, policy.PhaseCaseConceptualization, s.Phase())

	s.RecordTrust(4)
	assert.Equal(t, policy.PhaseSolutionExploration, s.Phase())

	s.RecordTrust(1)
	assert.Equal(t, policy.PhaseSolutionExploration, s.Phase(), "phase never moves backwards")

	assert.Equal(t, []int{2, 3, 3, 4, 1}, s.TrustHistory())
}

func TestSplitPlan(t *testing.T) {
	tech := func(s string) *string { return &s }

	tests := []struct {
		name          string
		text          string
		wantTechnique *string
		wantPlan      string
	}{
		{
			name:          "labeled delimiter",
			text:          "CBT technique: Cognitive restructuring\nCounseling plan:\n1. A\n2. B",
			wantTechnique: tech("Cognitive restructuring"),
			wantPlan:      "1. A\n2. B",
		},
		{
			name:          "numbered list without delimiter",
			text:          "Technique: Behavioral activation\n1. First step\n2. Second step",
			wantTechnique: tech("Behavioral activation"),
			wantPlan:      "1. First step\n2. Second step",
		},
		{
			name:          "parenthesis numbering",
			text:          "1) Open gently\n2) Explore history",
			wantTechnique: nil,
			wantPlan:      "1) Open gently\n2) Explore history",
		},
		{
			name:          "no structure falls back to whole text",
			text:          "Let's focus on building trust gradually over the first sessions.",
			wantTechnique: nil,
			wantPlan:      "Let's focus on building trust gradually over the first sessions.",
		},
		{
			name:          "delimiter without technique line",
			text:          "Counseling plan:\n1. X",
			wantTechnique: nil,
			wantPlan:      "1. X",
		},
		{
			name:          "empty technique value ignored",
			text:          "CBT technique:\nCounseling plan:\n1. X",
			wantTechnique: nil,
			wantPlan:      "1. X",
		},
		{
			name:          "delimiter with nothing after keeps whole text",
			text:          "Counseling plan:",
			wantTechnique: nil,
			wantPlan:      "Counseling plan:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotTechnique, gotPlan := splitPlan(tt.text)
			if tt.wantTechnique == nil {
				assert.Nil(t, gotTechnique)
			} else {
				require.NotNil(t, gotTechnique)
				assert.Equal(t, *tt.wantTechnique, *gotTechnique)
			}
			assert.Equal(t, tt.wantPlan, gotPlan)
		})
	}
}

func TestSanitizeReply(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "role label stripped", in: "Counselor: How does that feel?", want: "How does that feel?"},
		{name: "label case-insensitive", in: "counselor:   Take your time.", want: "Take your time."},
		{name: "quotes and backslashes removed", in: `He said \"I am fine\" yesterday.`, want: "He said I am fine yesterday."},
		{name: "plain reply unchanged", in: "What brings you here today?", want: "What brings you here today?"},
		{name: "label-like word kept", in: "Counselors are trained for this.", want: "Counselors are trained for this."},
		{name: "label only once", in: "Counselor: Counselor training is long.", want: "Counselor training is long."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeReply(tt.in))
		})
	}
}

func TestTrimHistory(t *testing.T) {
	long := make([]Utterance, 0, 15)
	long = append(long, Utterance{Role: RoleCounselor, Message: "greeting"})
	for i := 0; i < 14; i++ {
		long = append(long, Utterance{Role: RoleClient, Message: strings.Repeat("x", i+1)})
	}

	trimmed := trimHistory(long, 10)
	require.Len(t, trimmed, 11)
	assert.Equal(t, "greeting", trimmed[0].Message)
	assert.Equal(t, long[len(long)-10:], trimmed[1:])

	short := long[:4]
	assert.Equal(t, short, trimHistory(short, 10))
}
