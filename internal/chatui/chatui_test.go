package chatui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/counselsim/internal/casedata"
	"github.com/fyrsmithlabs/counselsim/internal/gateway"
	"github.com/fyrsmithlabs/counselsim/internal/policy"
	"github.com/fyrsmithlabs/counselsim/internal/prompt"
	"github.com/fyrsmithlabs/counselsim/internal/session"
)

const planReply = `CBT technique: Cognitive restructuring
Counseling plan:
1. Establish rapport
2. Identify automatic thoughts
3. Examine the evidence
4. Practice balanced alternatives
5. Plan relapse prevention`

// routedGateway answers by prompt content: plan requests get a scripted
// plan, counselor turns a fixed reply.
func routedGateway() gateway.Gateway {
	return gateway.NewStubFunc(func(req gateway.Request) (string, error) {
		content := ""
		for _, m := range req.Messages {
			content += m.Content
		}
		switch {
		case strings.Contains(content, "five-step counseling plan"):
			return planReply, nil
		case strings.Contains(content, "Continue the session"):
			return `Counselor: "That sounds really hard."`, nil
		default:
			return "I see.", nil
		}
	})
}

func testRecord() casedata.Record {
	return casedata.Record{
		"id":               "p1",
		"resistance_level": "beginner",
		"intake_form": map[string]any{
			"client_info": map[string]any{
				"name":       "Laura",
				"age":        float64(45),
				"occupation": "teacher",
			},
			"reason_for_seeking_counseling": "escalating anxiety at work",
		},
	}
}

// startedModel builds a model, sizes it, and runs session start.
func startedModel(t *testing.T, gw gateway.Gateway, opts Options) Model {
	t.Helper()

	sess := session.New(gw, prompt.New(nil))
	m := New(sess, testRecord(), opts)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updated.(Model)

	updated, _ = m.Update(m.startCmd()())
	return updated.(Model)
}

// exchange submits text as the client and completes the counselor turn.
func exchange(t *testing.T, m Model, text string) Model {
	t.Helper()

	m.input.SetValue(text)
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	require.True(t, m.busy, "submitting should start a counselor turn")

	// Run the turn the submit batch carries, then deliver its result.
	updated, _ = m.Update(m.stepCmd(text)())
	return updated.(Model)
}

func TestNewModel(t *testing.T) {
	sess := session.New(routedGateway(), prompt.New(nil))
	m := New(sess, testRecord(), Options{})

	assert.True(t, m.busy, "model starts busy while planning runs")
	assert.False(t, m.ready)
	assert.Equal(t, 2, m.interval, "beginner cases evaluate trust every 2 turns")
	assert.Equal(t, policy.PhaseTrustBuilding, m.phase)
}

func TestStartSeedsGreeting(t *testing.T) {
	m := startedModel(t, routedGateway(), Options{})

	assert.False(t, m.busy)
	require.NoError(t, m.err)
	require.Len(t, m.transcript, 1)
	assert.Equal(t, entryCounselor, m.transcript[0].kind)
	assert.Equal(t, session.Greeting, m.transcript[0].text)
	assert.Equal(t, policy.PhaseTrustBuilding, m.phase)
}

func TestStartFailureShowsNote(t *testing.T) {
	gw := gateway.NewStubFunc(func(req gateway.Request) (string, error) {
		return "", errors.New("endpoint unreachable")
	})
	m := startedModel(t, gw, Options{})

	assert.False(t, m.busy)
	assert.Error(t, m.err)
	require.Len(t, m.transcript, 1)
	assert.Equal(t, entryNote, m.transcript[0].kind)
	assert.Contains(t, m.transcript[0].text, "session failed to start")
}

func TestSubmitRunsCounselorTurn(t *testing.T) {
	m := startedModel(t, routedGateway(), Options{})
	m = exchange(t, m, "I feel anxious about work")

	assert.False(t, m.busy)
	assert.Equal(t, 1, m.turns)
	require.Len(t, m.transcript, 3)
	assert.Equal(t, entryClient, m.transcript[1].kind)
	assert.Equal(t, "I feel anxious about work", m.transcript[1].text)
	assert.Equal(t, entryCounselor, m.transcript[2].kind)
	assert.Equal(t, "That sounds really hard.", m.transcript[2].text, "label and quotes are stripped")
}

func TestSubmitIgnoredWhileBusy(t *testing.T) {
	m := startedModel(t, routedGateway(), Options{})
	m.busy = true

	m.input.SetValue("hello")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	assert.Nil(t, cmd)
	assert.Len(t, m.transcript, 1, "no client entry while a turn is in flight")
}

func TestSubmitIgnoresEmptyInput(t *testing.T) {
	m := startedModel(t, routedGateway(), Options{})

	m.input.SetValue("   ")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	assert.Nil(t, cmd)
	assert.False(t, m.busy)
	assert.Len(t, m.transcript, 1)
}

func TestTrustFlow(t *testing.T) {
	m := startedModel(t, routedGateway(), Options{TrustEval: true})

	m = exchange(t, m, "I have been anxious for months")
	assert.False(t, m.awaitTrust, "first turn is below the cadence")

	m = exchange(t, m, "Work keeps getting worse")
	require.True(t, m.awaitTrust, "beginner cadence asks after turn 2")

	// A non-rating answer keeps the prompt pending.
	m.input.SetValue("maybe")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	assert.True(t, m.awaitTrust)
	assert.Equal(t, entryNote, m.transcript[len(m.transcript)-1].kind)

	m.input.SetValue("4")
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	assert.False(t, m.awaitTrust)
	assert.Equal(t, []int{4}, m.trustScores)
	assert.Equal(t, policy.PhaseCaseConceptualization, m.phase, "score 4 clears the trust-building threshold")
	assert.Equal(t, clientPlaceholder, m.input.Placeholder)
}

func TestTrustDisabledByDefault(t *testing.T) {
	m := startedModel(t, routedGateway(), Options{})

	m = exchange(t, m, "first")
	m = exchange(t, m, "second")

	assert.False(t, m.awaitTrust)
	assert.Equal(t, "-", m.trustLabel())
}

func TestStepFailureShowsNote(t *testing.T) {
	calls := 0
	gw := gateway.NewStubFunc(func(req gateway.Request) (string, error) {
		calls++
		if calls == 1 {
			return planReply, nil
		}
		return "", errors.New("endpoint unreachable")
	})
	m := startedModel(t, gw, Options{})

	m.input.SetValue("hello")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	updated, _ = m.Update(m.stepCmd("hello")())
	m = updated.(Model)

	assert.False(t, m.busy)
	assert.Error(t, m.err)
	assert.Equal(t, 0, m.turns, "failed turns do not count")
	assert.Equal(t, entryNote, m.transcript[len(m.transcript)-1].kind)
}

func TestQuitKeys(t *testing.T) {
	for _, key := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		m := startedModel(t, routedGateway(), Options{})

		updated, cmd := m.Update(tea.KeyMsg{Type: key})
		m = updated.(Model)

		assert.True(t, m.quitting)
		assert.NotNil(t, cmd)
		assert.Empty(t, m.View())
	}
}

func TestViewLayout(t *testing.T) {
	m := startedModel(t, routedGateway(), Options{NoColor: true})

	view := m.View()
	assert.Contains(t, view, "counselsim chat")
	assert.Contains(t, view, "p1")
	assert.Contains(t, view, string(policy.PhaseTrustBuilding))
	assert.Contains(t, view, session.Greeting)
	assert.Contains(t, view, "[esc] quit")
}

func TestViewBeforeSizing(t *testing.T) {
	sess := session.New(routedGateway(), prompt.New(nil))
	m := New(sess, testRecord(), Options{})

	assert.Equal(t, "loading...", m.View())
}

func TestWindowSizing(t *testing.T) {
	sess := session.New(routedGateway(), prompt.New(nil))
	m := New(sess, testRecord(), Options{})

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = updated.(Model)

	assert.True(t, m.ready)
	assert.Equal(t, 100, m.view.Width)
	assert.Equal(t, 30-chromeLines, m.view.Height)
}
