// Package schema defines the structured counseling record produced by the
// conversion pipeline and validates candidate records against it.
//
// The record shape is the wire contract for LLM output. Validation reports
// the first violation in a fixed check order with stable wording, because
// the converter feeds the violation message back to the model verbatim as
// repair context. Changing the order or the wording changes repair behavior.
package schema

// Record is a fully structured counseling case record.
type Record struct {
	// Thought is the client's central automatic thought.
	Thought string `json:"thought"`

	// Patterns lists the cognitive distortion patterns identified in the case.
	Patterns []string `json:"patterns"`

	// IntakeForm holds the structured intake information.
	IntakeForm IntakeForm `json:"intake_form"`

	// CBTTechnique names the technique selected for the case.
	CBTTechnique string `json:"cbt_technique"`

	// CBTPlan maps step numbers "1" through "5" to plan step descriptions.
	CBTPlan map[string]string `json:"cbt_plan"`
}

// IntakeForm is the structured intake section of a counseling record.
type IntakeForm struct {
	ClientInfo                 ClientInfo `json:"client_info"`
	PresentingProblem          []string   `json:"presenting_problem"`
	PastHistory                []string   `json:"past_history"`
	CopingAttempts             []string   `json:"coping_attempts"`
	ReasonForSeekingCounseling string     `json:"reason_for_seeking_counseling"`
	CaseSummary                string     `json:"case_summary"`
}

// ClientInfo identifies the client. All fields are required; Age is the one
// numeric field.
type ClientInfo struct {
	Name          string `json:"name"`
	Age           int    `json:"age"`
	Gender        string `json:"gender"`
	Occupation    string `json:"occupation"`
	Education     string `json:"education"`
	MaritalStatus string `json:"marital_status"`
	FamilyDetails string `json:"family_details"`
}

// planStepKeys are the exact keys a cbt_plan object must carry.
var planStepKeys = []string{"1", "2", "3", "4", "5"}

// PlanSteps returns the plan step descriptions in step order.
func (r *Record) PlanSteps() []string {
	steps := make([]string, 0, len(planStepKeys))
	for _, k := range planStepKeys {
		steps = append(steps, r.CBTPlan[k])
	}
	return steps
}
