package casedata

import (
	"fmt"
	"strings"
)

// DefaultReason stands in when a record gives no reason for seeking
// counseling.
const DefaultReason = "The client seeks counseling support."

// IntakeFields are the client details rendered into the intake form block.
type IntakeFields struct {
	Name          string
	Age           string
	Gender        string
	Occupation    string
	Education     string
	MaritalStatus string
	FamilyDetails string
}

// BuildIntakeForm renders the fields as the labeled text block the
// counselor prompts embed. The layout is deterministic; blank fields render
// with empty values rather than being dropped.
func BuildIntakeForm(f IntakeFields) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", f.Name)
	fmt.Fprintf(&b, "Age: %s\n", f.Age)
	fmt.Fprintf(&b, "Gender: %s\n", f.Gender)
	fmt.Fprintf(&b, "Occupation: %s\n", f.Occupation)
	fmt.Fprintf(&b, "Education: %s\n", f.Education)
	fmt.Fprintf(&b, "Marital status: %s\n", f.MaritalStatus)
	fmt.Fprintf(&b, "Family details: %s", f.FamilyDetails)
	return b.String()
}

// IntakeReason derives the intake form text and the counseling reason from
// a case record's intake_form object. Missing pieces render empty; a blank
// reason falls back to DefaultReason.
func IntakeReason(rec Record) (intake string, reason string) {
	form, _ := rec["intake_form"].(map[string]any)
	ci, _ := form["client_info"].(map[string]any)

	intake = BuildIntakeForm(IntakeFields{
		Name:          stringField(ci, "name"),
		Age:           stringField(ci, "age"),
		Gender:        stringField(ci, "gender"),
		Occupation:    stringField(ci, "occupation"),
		Education:     stringField(ci, "education"),
		MaritalStatus: stringField(ci, "marital_status"),
		FamilyDetails: stringField(ci, "family_details"),
	})

	reason = stringField(form, "reason_for_seeking_counseling")
	if strings.TrimSpace(reason) == "" {
		reason = DefaultReason
	}
	return intake, reason
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
