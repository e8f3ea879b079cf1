package convert

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/counselsim/internal/gateway"
)

const validRecordJSON = `{
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

// Same record with the thought field dropped.
const missingThoughtJSON = `{
  "patterns": ["catastrophizing"],
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

func testCase() map[string]any {
	return map[string]any{"id": "p1", "note": "raw case text"}
}

func TestConvertFirstAttempt(t *testing.T) {
	stub := gateway.NewStub(validRecordJSON)
	c := New(stub)

	rec, err := c.Convert(context.Background(), testCase(), "convert system prompt", 2)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if rec.IntakeForm.ClientInfo.Name != "Laura" {
		t.Errorf("Name = %q, want Laura", rec.IntakeForm.ClientInfo.Name)
	}
	if rec.IntakeForm.ClientInfo.Age != 45 {
		t.Errorf("Age = %d, want 45", rec.IntakeForm.ClientInfo.Age)
	}
	if got := stub.CallCount(); got != 1 {
		t.Errorf("CallCount() = %d, want 1", got)
	}

	calls := stub.Calls()
	if calls[0].System != "convert system prompt" {
		t.Errorf("System = %q, want the system prompt", calls[0].System)
	}
	if !strings.Contains(calls[0].Messages[0].Content, `"id":"p1"`) {
		t.Errorf("first prompt should carry the serialized case record, got %q", calls[0].Messages[0].Content)
	}
}

func TestConvertStripsFences(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "json fence", reply: "```json\n" + validRecordJSON + "\n```"},
		{name: "bare fence", reply: "```\n" + validRecordJSON + "\n```"},
		{name: "fence without newline before close", reply: "```json\n" + validRecordJSON + "\n```  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := gateway.NewStub(tt.reply)
			c := New(stub)

			rec, err := c.Convert(context.Background(), testCase(), "sys", 0)
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			if rec.CBTTechnique != "Cognitive restructuring" {
				t.Errorf("CBTTechnique = %q", rec.CBTTechnique)
			}
		})
	}
}

func TestConvertBacktickInsideBodyNotStripped(t *testing.T) {
	// A response that merely mentions backticks but starts with the object
	// must parse as-is.
	reply := strings.Replace(validRecordJSON, "two children", "two `children`", 1)
	stub := gateway.NewStub(reply)
	c := New(stub)

	if _, err := c.Convert(context.Background(), testCase(), "sys", 0); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
}

func TestConvertRepairsAfterParseFailure(t *testing.T) {
	stub := gateway.NewStub("this is not json", validRecordJSON)
	c := New(stub)

	rec, err := c.Convert(context.Background(), testCase(), "sys", 2)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if rec.Thought == "" {
		t.Error("expected a bound record after repair")
	}
	if got := stub.CallCount(); got != 2 {
		t.Fatalf("CallCount() = %d, want 2", got)
	}

	repair := stub.Calls()[1].Messages[0].Content
	if !strings.Contains(repair, "response is not a valid JSON object") {
		t.Errorf("repair prompt should embed the parse error, got %q", repair)
	}
	if !strings.Contains(repair, `"id":"p1"`) {
		t.Errorf("repair prompt should embed the original record, got %q", repair)
	}
}

func TestConvertRepairsAfterValidationFailure(t *testing.T) {
	stub := gateway.NewStub(missingThoughtJSON, validRecordJSON)
	c := New(stub)

	if _, err := c.Convert(context.Background(), testCase(), "sys", 2); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	repair := stub.Calls()[1].Messages[0].Content
	if !strings.Contains(repair, "missing required field: thought") {
		t.Errorf("repair prompt should embed the validation message verbatim, got %q", repair)
	}
}

func TestConvertEmptyResponse(t *testing.T) {
	stub := gateway.NewStub("   \n  ", validRecordJSON)
	c := New(stub)

	if _, err := c.Convert(context.Background(), testCase(), "sys", 1); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	repair := stub.Calls()[1].Messages[0].Content
	if !strings.Contains(repair, "response was empty") {
		t.Errorf("repair prompt should name the empty response, got %q", repair)
	}
}

func TestConvertExhaustsRetryBudget(t *testing.T) {
	stub := gateway.NewStubFunc(func(gateway.Request) (string, error) {
		return "still not json", nil
	})
	c := New(stub)

	_, err := c.Convert(context.Background(), testCase(), "sys", 2)
	if err == nil {
		t.Fatal("Convert() expected error")
	}

	var failed *FailedError
	if !errors.As(err, &failed) {
		t.Fatalf("error = %v, want *FailedError", err)
	}
	if failed.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", failed.Attempts)
	}
	if failed.Last == nil {
		t.Error("Last should carry the final parse error")
	}
	if got := stub.CallCount(); got != 3 {
		t.Errorf("CallCount() = %d, want maxRetries+1 = 3", got)
	}
}

func TestConvertZeroRetries(t *testing.T) {
	stub := gateway.NewStubFunc(func(gateway.Request) (string, error) {
		return "nope", nil
	})
	c := New(stub)

	_, err := c.Convert(context.Background(), testCase(), "sys", 0)
	var failed *FailedError
	if !errors.As(err, &failed) {
		t.Fatalf("error = %v, want *FailedError", err)
	}
	if failed.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", failed.Attempts)
	}
}

func TestConvertNegativeRetriesUsesDefault(t *testing.T) {
	stub := gateway.NewStubFunc(func(gateway.Request) (string, error) {
		return "nope", nil
	})
	c := New(stub)

	_, err := c.Convert(context.Background(), testCase(), "sys", -1)
	var failed *FailedError
	if !errors.As(err, &failed) {
		t.Fatalf("error = %v, want *FailedError", err)
	}
	if want := DefaultMaxRetries + 1; failed.Attempts != want {
		t.Errorf("Attempts = %d, want %d", failed.Attempts, want)
	}
}

func TestConvertConfiguredRetryBudget(t *testing.T) {
	stub := gateway.NewStubFunc(func(gateway.Request) (string, error) {
		return "nope", nil
	})
	c := New(stub, WithMaxRetries(4))

	_, err := c.Convert(context.Background(), testCase(), "sys", -1)
	var failed *FailedError
	if !errors.As(err, &failed) {
		t.Fatalf("error = %v, want *FailedError", err)
	}
	if failed.Attempts != 5 {
		t.Errorf("Attempts = %d, want 5", failed.Attempts)
	}

	// An explicit count still wins over the configured budget.
	stub2 := gateway.NewStubFunc(func(gateway.Request) (string, error) {
		return "nope", nil
	})
	c2 := New(stub2, WithMaxRetries(4))
	_, err = c2.Convert(context.Background(), testCase(), "sys", 0)
	if !errors.As(err, &failed) {
		t.Fatalf("error = %v, want *FailedError", err)
	}
	if failed.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", failed.Attempts)
	}
}

func TestConvertTransportErrorAborts(t *testing.T) {
	boom := errors.New("upstream down")
	stub := gateway.NewStubFunc(func(gateway.Request) (string, error) {
		return "", boom
	})
	c := New(stub)

	_, err := c.Convert(context.Background(), testCase(), "sys", 2)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped transport error", err)
	}
	var failed *FailedError
	if errors.As(err, &failed) {
		t.Error("transport errors must not be reported as retry exhaustion")
	}
	if got := stub.CallCount(); got != 1 {
		t.Errorf("CallCount() = %d, want 1", got)
	}
}

func TestConvertCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := gateway.NewStub(validRecordJSON)
	c := New(stub)

	_, err := c.Convert(ctx, testCase(), "sys", 2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if got := stub.CallCount(); got != 0 {
		t.Errorf("CallCount() = %d, want 0", got)
	}
}

func TestParseObjectTrailingData(t *testing.T) {
	if _, err := parseObject(`{"a": 1} extra`); err == nil {
		t.Fatal("expected trailing-data error")
	}
	var parse *ParseError
	_, err := parseObject(`[1, 2]`)
	if !errors.As(err, &parse) {
		t.Fatalf("error = %v, want *ParseError for non-object JSON", err)
	}
}
