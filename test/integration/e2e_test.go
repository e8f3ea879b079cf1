package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/counselsim/internal/caseindex"
	"github.com/fyrsmithlabs/counselsim/internal/convert"
	"github.com/fyrsmithlabs/counselsim/internal/gateway"
	"github.com/fyrsmithlabs/counselsim/internal/policy"
	"github.com/fyrsmithlabs/counselsim/internal/prompt"
	"github.com/fyrsmithlabs/counselsim/internal/scenario"
	"github.com/fyrsmithlabs/counselsim/internal/session"
	"github.com/fyrsmithlabs/counselsim/internal/simulate"
)

// TestE2E_CounselingPipeline validates the complete pipeline on one case:
// 1. Load the case record
// 2. Simulate a scripted dialogue until the counseling goal is reached
// 3. Convert the raw case into a validated structured record
// 4. Index both cases and retrieve the right one by summary
func TestE2E_CounselingPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	ctx := context.Background()
	logger := zap.NewNop()

	// Trust probes always answer 5; the second goal probe answers YES.
	gw := createTestGateway(t, "5", 2)
	prompts := prompt.New(nil)

	// ═══════════════════════════════════════════════════════════════
	// Phase 1: Load the case record
	// ═══════════════════════════════════════════════════════════════

	cases := createTestCases(t)
	rec, err := cases.Lookup("p1")
	require.NoError(t, err)
	assert.Equal(t, "beginner", rec.String("resistance_level"))
	t.Logf("✅ Phase 1: Loaded case %s", rec.ID())

	// ═══════════════════════════════════════════════════════════════
	// Phase 2: Simulate the dialogue
	// ═══════════════════════════════════════════════════════════════

	sc := &scenario.Scenario{
		CaseID:             "p1",
		FirstClientMessage: "I guess I'm here because work has been too much.",
		ClientMessages: []string{
			"It starts on Sunday night, before the week even begins.",
			"I keep thinking one mistake means I'm failing my students.",
			"Honestly, not much evidence. One complaint, two years ago.",
			"I suppose I'd tell a colleague the same thing you're saying.",
			"Writing the thought down and checking it sounds doable.",
			"Yes, I think I could try that this week.",
			"That actually feels manageable.",
			"Thank you, this helped.",
		},
	}

	runner := simulate.New(gw, prompts,
		simulate.WithLogger(logger),
		simulate.WithMaxTurns(10),
	)
	transcript, err := runner.Run(ctx, rec, sc)
	require.NoError(t, err)

	// Beginner cadence is every 2 turns: trust at 2 and 4 walks the phases
	// forward, the goal probe fires at 4 (NO) and 6 (YES).
	assert.Equal(t, 6, transcript.Turns)
	assert.Equal(t, simulate.StopGoalReached, transcript.StopCause)
	assert.Equal(t, policy.PhaseSolutionExploration, transcript.FinalPhase)
	assert.Equal(t, []int{5, 5, 5}, transcript.TrustHistory)
	require.NotNil(t, transcript.Technique)
	assert.Equal(t, "Cognitive restructuring", *transcript.Technique)
	assert.Contains(t, transcript.Plan, "Establish rapport")

	// Greeting, scripted opener, then a client and counselor utterance per turn.
	require.Len(t, transcript.History, 2+2*transcript.Turns)
	assert.Equal(t, session.RoleCounselor, transcript.History[0].Role)
	assert.Equal(t, session.Greeting, transcript.History[0].Message)
	t.Logf("✅ Phase 2: Simulated %d turns to %s", transcript.Turns, transcript.StopCause)

	// ═══════════════════════════════════════════════════════════════
	// Phase 3: Convert the case into a structured record
	// ═══════════════════════════════════════════════════════════════

	systemPrompt, ok := prompts.Get(prompt.TemplateConvertSystem)
	require.True(t, ok)

	converter := convert.New(gw, convert.WithLogger(logger))
	record, err := converter.Convert(ctx, rec, systemPrompt, 2)
	require.NoError(t, err)
	assert.Equal(t, "Cognitive restructuring", record.CBTTechnique)
	assert.Equal(t, "Laura", record.IntakeForm.ClientInfo.Name)
	assert.Equal(t, 45, record.IntakeForm.ClientInfo.Age)
	require.Len(t, record.PlanSteps(), 5)
	assert.Equal(t, "Establish rapport", record.PlanSteps()[0])
	t.Logf("✅ Phase 3: Converted case to structured record (%s)", record.CBTTechnique)

	// ═══════════════════════════════════════════════════════════════
	// Phase 4: Index both cases and retrieve by summary
	// ═══════════════════════════════════════════════════════════════

	idx, err := caseindex.New(caseindex.Config{Path: t.TempDir()}, bagEmbedder{}, logger)
	require.NoError(t, err)

	added, err := idx.Add(ctx, cases.Records())
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	hits, err := idx.Search(ctx, "A night-shift nurse who cannot sleep and ruminates about mistakes.", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "p2", hits[0].ID)
	t.Logf("✅ Phase 4: Retrieved case %s for the insomnia query", hits[0].ID)

	t.Logf("✅ E2E Pipeline Complete: Case → Simulation → Conversion → Retrieval")
}

// TestE2E_ImprovisedClientAgent runs a simulation without a script so the
// persona agent supplies the client turns, and stops on the turn cap when
// the goal probe never answers YES.
func TestE2E_ImprovisedClientAgent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	ctx := context.Background()

	gw := createTestGateway(t, "5", 0)
	prompts := prompt.New(nil)

	cases := createTestCases(t)
	rec, err := cases.Lookup("p2")
	require.NoError(t, err)

	runner := simulate.New(gw, prompts, simulate.WithMaxTurns(4))
	transcript, err := runner.Run(ctx, rec, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, transcript.Turns)
	assert.Equal(t, simulate.StopMaxTurns, transcript.StopCause)

	// Advanced cadence is every 6 turns, so a 4-turn run never records trust
	// and the phase stays where it started.
	assert.Empty(t, transcript.TrustHistory)
	assert.Equal(t, policy.PhaseTrustBuilding, transcript.FinalPhase)

	// No scripted opener: the greeting leads, then improvised client turns.
	require.Len(t, transcript.History, 1+2*transcript.Turns)
	assert.Equal(t, session.RoleClient, transcript.History[1].Role)
	assert.Contains(t, transcript.History[1].Message, "lying awake")
	t.Logf("✅ Improvised run: %d turns, stopped on %s", transcript.Turns, transcript.StopCause)
}

// brokenRecordReply is the structured record with cbt_plan removed, so the
// first conversion attempt fails validation and triggers a repair.
const brokenRecordReply = `{
  "thought": "The client shows persistent avoidance tied to failure beliefs.",
  "patterns": ["catastrophizing", "avoidance"],
  "intake_form": {
    "client_info": {
      "name": "Laura",
      "age": 45,
      "gender": "female",
      "occupation": "teacher",
      "education": "Master's degree",
      "marital_status": "divorced",
      "family_details": "two children"
    },
    "presenting_problem": ["work anxiety", "poor sleep", "social withdrawal"],
    "past_history": ["burnout two years ago"],
    "coping_attempts": ["taking leave"],
    "reason_for_seeking_counseling": "escalating anxiety at work",
    "case_summary": "A teacher with escalating work anxiety and withdrawal."
  },
  "cbt_technique": "Cognitive restructuring"
}`

// TestE2E_ConversionRepair validates the repair loop end to end: a reply
// that fails validation is retried with the violation fed back, and the
// repaired reply binds.
func TestE2E_ConversionRepair(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	ctx := context.Background()

	gw := gateway.NewStub(brokenRecordReply, recordReply)
	prompts := prompt.New(nil)
	systemPrompt, ok := prompts.Get(prompt.TemplateConvertSystem)
	require.True(t, ok)

	converter := convert.New(gw)
	record, err := converter.Convert(ctx, createTestCaseRecord(t), systemPrompt, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, gw.CallCount())
	assert.Equal(t, "Cognitive restructuring", record.CBTTechnique)

	// The repair attempt carries the exact violation wording.
	calls := gw.Calls()
	repair := calls[1].Messages[0].Content
	assert.Contains(t, repair, "missing required field: cbt_plan")
	assert.Contains(t, repair, "Return only the corrected JSON object")
	t.Logf("✅ Repair loop: fixed after %d attempts", gw.CallCount())
}

func createTestCaseRecord(t *testing.T) map[string]any {
	t.Helper()

	rec, err := createTestCases(t).Lookup("p1")
	require.NoError(t, err)
	return rec
}
