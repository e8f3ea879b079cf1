package simulate

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/counselsim/internal/gateway"
	"github.com/fyrsmithlabs/counselsim/internal/policy"
	"github.com/fyrsmithlabs/counselsim/internal/prompt"
	"github.com/fyrsmithlabs/counselsim/internal/session"
)

// dialogueWindow is how many recent utterances the client agent sees.
const dialogueWindow = 12

// clientAgent plays the client persona: it produces the next client
// utterance for the current phase and answers the trust and goal probes.
type clientAgent struct {
	gw          gateway.Gateway
	prompts     *prompt.Store
	persona     map[string]any
	temperature float64
	model       string
}

func (a *clientAgent) nextMessage(ctx context.Context, phase policy.Phase, history []session.Utterance) (string, error) {
	vars := make(map[string]any, len(a.persona)+2)
	for k, v := range a.persona {
		vars[k] = v
	}
	vars["phase"] = string(phase)
	vars["dialogue"] = formatDialogue(history, dialogueWindow)

	p, err := a.prompts.Render(prompt.TemplateClientStep, vars)
	if err != nil {
		return "", fmt.Errorf("rendering client prompt: %w", err)
	}
	reply, err := a.complete(ctx, p)
	if err != nil {
		return "", err
	}
	return stripClientLabel(reply), nil
}

// trustScore asks the persona for a 1-5 openness rating. An unparseable
// answer returns ok=false, not an error.
func (a *clientAgent) trustScore(ctx context.Context, history []session.Utterance) (int, bool, error) {
	p, err := a.prompts.Render(prompt.TemplateTrustCheck, map[string]any{
		"dialogue": formatDialogue(history, dialogueWindow),
	})
	if err != nil {
		return 0, false, fmt.Errorf("rendering trust prompt: %w", err)
	}
	reply, err := a.complete(ctx, p)
	if err != nil {
		return 0, false, err
	}
	score, ok := policy.ParseTrustScore(reply)
	return score, ok, nil
}

// goalReached asks whether the counseling concern feels addressed.
func (a *clientAgent) goalReached(ctx context.Context, history []session.Utterance) (bool, bool, error) {
	p, err := a.prompts.Render(prompt.TemplateGoalCheck, map[string]any{
		"dialogue": formatDialogue(history, dialogueWindow),
	})
	if err != nil {
		return false, false, fmt.Errorf("rendering goal prompt: %w", err)
	}
	reply, err := a.complete(ctx, p)
	if err != nil {
		return false, false, err
	}
	answer, ok := policy.ParseYesNo(reply)
	return answer, ok, nil
}

func (a *clientAgent) complete(ctx context.Context, p string) (string, error) {
	return a.gw.Complete(ctx, gateway.Request{
		Messages:    []gateway.Message{{Role: gateway.RoleUser, Content: p}},
		Temperature: a.temperature,
		Model:       a.model,
	})
}

// formatDialogue renders the last n utterances as Therapist/Client lines
// for the client agent's view of the conversation.
func formatDialogue(history []session.Utterance, n int) string {
	chunk := history
	if len(chunk) > n {
		chunk = chunk[len(chunk)-n:]
	}
	lines := make([]string, 0, len(chunk))
	for _, u := range chunk {
		who := "Client"
		if u.Role == session.RoleCounselor {
			who = "Therapist"
		}
		lines = append(lines, who+": "+u.Message)
	}
	return strings.Join(lines, "\n")
}

func stripClientLabel(reply string) string {
	reply = strings.TrimSpace(reply)
	const label = "Client:"
	if len(reply) >= len(label) && strings.EqualFold(reply[:len(label)], label) {
		reply = strings.TrimSpace(reply[len(label):])
	}
	return reply
}
