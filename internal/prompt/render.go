package prompt

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
)

// Placeholders are bare identifiers in braces, such as {history}. Brace
// characters that open JSON examples inside a template never match because
// the next character is not an identifier character.
var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// RenderText substitutes {placeholder} markers in tmpl with values from
// vars. Missing variables and nil values render as empty strings, lists and
// maps render as JSON, and everything else is stringified. Rendering never
// fails.
func RenderText(tmpl string, vars map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := vars[name]
		if !ok {
			return ""
		}
		return stringify(value)
	})
}

func stringify(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}

	switch reflect.ValueOf(value).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Pointer:
		if b, err := json.Marshal(value); err == nil {
			return string(b)
		}
	}
	return fmt.Sprintf("%v", value)
}
