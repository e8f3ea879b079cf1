package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ViolationError reports the first schema violation found in a candidate
// record. Message wording is part of the contract: the converter sends it
// back to the model as repair context, so it must stay stable and specific.
type ViolationError struct {
	// Field is the dotted path of the violating field.
	Field string

	// Message is the human-readable description of the violation.
	Message string
}

func (e *ViolationError) Error() string {
	return e.Message
}

func violation(field, format string, args ...any) *ViolationError {
	return &ViolationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Field check order below is fixed. Given the same malformed input the same
// first violation is reported every time.
var (
	topLevelFields   = []string{"thought", "patterns", "intake_form", "cbt_technique", "cbt_plan"}
	clientInfoFields = []string{"name", "age", "gender", "occupation", "education", "marital_status", "family_details"}

	intakeListFields = []struct {
		name string
		min  int
	}{
		{"presenting_problem", 3},
		{"past_history", 1},
		{"coping_attempts", 1},
	}

	intakeStringFields = []string{"reason_for_seeking_counseling", "case_summary"}
)

// Validate checks a candidate record against the schema and returns a
// *ViolationError describing the first violation, or nil if the record is
// fully valid. The candidate is a decoded JSON object (map form) so that
// missing keys, wrong types, and extra plan steps are all observable.
func Validate(raw map[string]any) error {
	for _, k := range topLevelFields {
		if _, ok := raw[k]; !ok {
			return violation(k, "missing required field: %s", k)
		}
	}

	if !isNonEmptyString(raw["thought"]) {
		return violation("thought", "thought must be a non-empty string")
	}

	if err := checkStringList("patterns", raw["patterns"], 1); err != nil {
		return err
	}

	intake, ok := raw["intake_form"].(map[string]any)
	if !ok {
		return violation("intake_form", "intake_form must be an object")
	}

	ci, ok := intake["client_info"]
	if !ok {
		return violation("intake_form.client_info", "missing required field: intake_form.client_info")
	}
	ciMap, ok := ci.(map[string]any)
	if !ok {
		return violation("intake_form.client_info", "intake_form.client_info must be an object")
	}
	for _, f := range clientInfoFields {
		path := "intake_form.client_info." + f
		v, ok := ciMap[f]
		if !ok {
			return violation(path, "missing required field: %s", path)
		}
		if f == "age" {
			if !isNumber(v) {
				return violation(path, "%s must be a number", path)
			}
			continue
		}
		if !isNonEmptyString(v) {
			return violation(path, "%s must be a non-empty string", path)
		}
	}

	for _, lf := range intakeListFields {
		path := "intake_form." + lf.name
		v, ok := intake[lf.name]
		if !ok {
			return violation(path, "missing required field: %s", path)
		}
		if err := checkStringList(path, v, lf.min); err != nil {
			return err
		}
	}

	for _, f := range intakeStringFields {
		path := "intake_form." + f
		v, ok := intake[f]
		if !ok {
			return violation(path, "missing required field: %s", path)
		}
		if !isNonEmptyString(v) {
			return violation(path, "%s must be a non-empty string", path)
		}
	}

	if !isNonEmptyString(raw["cbt_technique"]) {
		return violation("cbt_technique", "cbt_technique must be a non-empty string")
	}

	plan, ok := raw["cbt_plan"].(map[string]any)
	if !ok {
		return violation("cbt_plan", "cbt_plan must be an object")
	}
	for _, k := range planStepKeys {
		if _, ok := plan[k]; !ok {
			return violation("cbt_plan."+k, "cbt_plan is missing step %q", k)
		}
	}
	if len(plan) != len(planStepKeys) {
		return violation("cbt_plan", "cbt_plan must have exactly steps %q through %q", "1", "5")
	}
	for _, k := range planStepKeys {
		if !isNonEmptyString(plan[k]) {
			return violation("cbt_plan."+k, "cbt_plan step %q must be a non-empty string", k)
		}
	}

	return nil
}

// FromMap binds a candidate that already passed Validate to the typed Record.
// Calling it on an unvalidated map returns an error instead of a partial
// record.
func FromMap(raw map[string]any) (*Record, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}

	intake := raw["intake_form"].(map[string]any)
	ci := intake["client_info"].(map[string]any)

	age, err := toInt(ci["age"])
	if err != nil {
		return nil, fmt.Errorf("binding intake_form.client_info.age: %w", err)
	}

	plan := make(map[string]string, len(planStepKeys))
	for k, v := range raw["cbt_plan"].(map[string]any) {
		plan[k] = v.(string)
	}

	return &Record{
		Thought:  raw["thought"].(string),
		Patterns: toStringList(raw["patterns"]),
		IntakeForm: IntakeForm{
			ClientInfo: ClientInfo{
				Name:          ci["name"].(string),
				Age:           age,
				Gender:        ci["gender"].(string),
				Occupation:    ci["occupation"].(string),
				Education:     ci["education"].(string),
				MaritalStatus: ci["marital_status"].(string),
				FamilyDetails: ci["family_details"].(string),
			},
			PresentingProblem:          toStringList(intake["presenting_problem"]),
			PastHistory:                toStringList(intake["past_history"]),
			CopingAttempts:             toStringList(intake["coping_attempts"]),
			ReasonForSeekingCounseling: intake["reason_for_seeking_counseling"].(string),
			CaseSummary:                intake["case_summary"].(string),
		},
		CBTTechnique: raw["cbt_technique"].(string),
		CBTPlan:      plan,
	}, nil
}

func checkStringList(path string, v any, min int) error {
	list, ok := v.([]any)
	if !ok || len(list) < min {
		return violation(path, "%s must be a list with at least %d items", path, min)
	}
	for i, item := range list {
		if !isNonEmptyString(item) {
			return violation(fmt.Sprintf("%s[%d]", path, i), "%s[%d] must be a non-empty string", path, i)
		}
	}
	return nil
}

func isNonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && s != ""
}

// isNumber accepts the numeric forms a decoded JSON object can carry. Decoders
// configured with UseNumber produce json.Number; plain decoding produces
// float64; maps built in process may hold native ints.
func isNumber(v any) bool {
	switch n := v.(type) {
	case json.Number:
		_, err := n.Float64()
		return err == nil
	case float64, float32, int, int8, int16, int32, int64:
		return true
	default:
		return false
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, fmt.Errorf("not an integer: %q", n.String())
			}
			return int(f), nil
		}
		return int(i), nil
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}

func toStringList(v any) []string {
	list := v.([]any)
	out := make([]string, len(list))
	for i, item := range list {
		out[i] = item.(string)
	}
	return out
}
