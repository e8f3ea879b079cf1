package integration

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/counselsim/internal/casedata"
	"github.com/fyrsmithlabs/counselsim/internal/gateway"
)

// caseFileJSON is the shared two-record case fixture. The first record is a
// low-resistance client, the second a high-resistance one with a distinct
// summary so retrieval has something to separate.
const caseFileJSON = `{"patients": [
  {
    "id": "p1",
    "resistance_level": "beginner",
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
      "reason_for_seeking_counseling": "escalating anxiety at work",
      "case_summary": "A teacher with escalating work anxiety and social withdrawal."
    }
  },
  {
    "id": "p2",
    "resistance_level": "advanced",
    "intake_form": {
      "client_info": {
        "name": "Marcus",
        "age": 33,
        "gender": "male",
        "occupation": "nurse",
        "education": "Bachelor's degree",
        "marital_status": "single",
        "family_details": "lives alone"
      },
      "reason_for_seeking_counseling": "insomnia and nighttime rumination",
      "case_summary": "A night-shift nurse who cannot sleep and ruminates about mistakes."
    }
  }
]}`

const planReply = `CBT technique: Cognitive restructuring
Counseling plan:
1. Establish rapport
2. Identify automatic thoughts
3. Examine the evidence
4. Practice balanced alternatives
5. Plan relapse prevention`

const recordReply = `{
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
  "cbt_technique": "Cognitive restructuring",
  "cbt_plan": {
    "1": "Establish rapport",
    "2": "Identify automatic thoughts",
    "3": "Examine the evidence",
    "4": "Practice balanced alternatives",
    "5": "Plan relapse prevention"
  }
}`

// createTestCases loads the shared case fixture.
func createTestCases(t *testing.T) *casedata.Source {
	t.Helper()

	src, err := casedata.Decode(strings.NewReader(caseFileJSON))
	require.NoError(t, err, "Should decode case fixture")
	return src
}

// scriptedGateway routes requests by prompt content so a whole pipeline can
// run against it: plan requests get the scripted plan, counselor turns a
// labeled reply, persona turns a client utterance, trust probes a fixed
// score, and conversion calls (the only ones with a system prompt) the
// record JSON. Goal probes answer NO until yesAfterGoals probes have been
// made, then YES.
type scriptedGateway struct {
	trustAnswer   string
	yesAfterGoals int

	mu        sync.Mutex
	goalCalls int
}

func (g *scriptedGateway) respond(req gateway.Request) (string, error) {
	if req.System != "" {
		return recordReply, nil
	}
	last := req.Messages[len(req.Messages)-1].Content
	switch {
	case strings.Contains(last, "five-step counseling plan"):
		return planReply, nil
	case strings.Contains(last, "Continue the session"):
		return `Counselor: "That sounds really hard. What goes through your mind then?"`, nil
	case strings.Contains(last, "scale of 1 to 5"):
		return g.trustAnswer, nil
	case strings.Contains(last, "Answer YES or NO"):
		g.mu.Lock()
		g.goalCalls++
		n := g.goalCalls
		g.mu.Unlock()
		if g.yesAfterGoals > 0 && n >= g.yesAfterGoals {
			return "YES", nil
		}
		return "NO", nil
	case strings.Contains(last, "Stay fully in character"):
		return `Client: "I have been lying awake going over everything I did wrong."`, nil
	}
	return "I see.", nil
}

// createTestGateway builds a stub over the scripted routing. A zero
// yesAfterGoals never answers YES, so runs stop on their turn cap.
func createTestGateway(t *testing.T, trustAnswer string, yesAfterGoals int) *gateway.Stub {
	t.Helper()

	g := &scriptedGateway{trustAnswer: trustAnswer, yesAfterGoals: yesAfterGoals}
	return gateway.NewStubFunc(g.respond)
}

// bagEmbedder is a deterministic embedder for retrieval tests: a normalized
// character-bag vector, so identical texts embed identically and no
// embedding endpoint is needed.
type bagEmbedder struct{}

func (bagEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	const dims = 32
	v := make([]float32, dims)
	for _, r := range text {
		v[int(r)%dims]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v, nil
}

func (e bagEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
