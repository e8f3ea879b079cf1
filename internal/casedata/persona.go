package casedata

import (
	"fmt"
	"strings"
)

// NormalizePersona flattens a raw case record into the variable map the
// client-agent prompt templates consume. The original record is untouched.
//
// Belief lists merge into core_beliefs in helpless, unlovable, worthless
// order. Singular source keys map to the plural template names, the type
// list joins into one string, and style_description always starts empty.
func NormalizePersona(rec Record) map[string]any {
	out := make(map[string]any, len(rec)+6)
	for k, v := range rec {
		out[k] = v
	}

	core := make([]string, 0)
	core = append(core, stringList(rec["helpless_belief"])...)
	core = append(core, stringList(rec["unlovable_belief"])...)
	core = append(core, stringList(rec["worthless_belief"])...)
	out["core_beliefs"] = core

	out["intermediate_beliefs"] = valueOrEmpty(rec["intermediate_belief"])
	out["resistance_emotions"] = valueOrEmpty(rec["resistance_emotion"])
	out["resistance_monologue"] = valueOrEmpty(rec["resistance_internal_monologue"])
	out["patient_type_content"] = joinedType(rec["type"])
	out["style_description"] = ""

	return out
}

func stringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				items = append(items, s)
			} else {
				items = append(items, fmt.Sprintf("%v", item))
			}
		}
		return items
	default:
		return nil
	}
}

func valueOrEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func joinedType(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case []any:
		return strings.Join(stringList(t), ", ")
	default:
		return fmt.Sprintf("%v", t)
	}
}
