package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/counselsim/internal/config"
)

const redactedValue = "[REDACTED]"

// sensitiveKeySubstrings flags fields whose key names suggest credentials.
// Matching is case-insensitive and by substring, so "gateway_api_key" is
// caught as well as "api_key".
var sensitiveKeySubstrings = []string{
	"api_key",
	"apikey",
	"authorization",
	"bearer",
	"credential",
	"password",
	"secret",
}

// Secret creates a field for a config.Secret. Unset secrets log as the
// empty string so missing credentials remain visible in startup logs.
func Secret(key string, val config.Secret) zap.Field {
	if !val.IsSet() {
		return zap.String(key, "")
	}
	return zap.String(key, redactedValue)
}

func sensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeySubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// redactFields replaces the value of any sensitive field. The input slice
// is left untouched; a copy is made only when something needs redacting.
func redactFields(fields []zapcore.Field) []zapcore.Field {
	out := fields
	copied := false
	for i, f := range fields {
		if !sensitiveKey(f.Key) {
			continue
		}
		if !copied {
			out = make([]zapcore.Field, len(fields))
			copy(out, fields)
			copied = true
		}
		out[i] = zap.String(f.Key, redactedValue)
	}
	return out
}

// redactCore wraps a zapcore.Core and redacts sensitive fields on every
// path, both logger.With attachments and call-site fields.
type redactCore struct {
	zapcore.Core
}

func (c redactCore) With(fields []zapcore.Field) zapcore.Core {
	return redactCore{c.Core.With(redactFields(fields))}
}

func (c redactCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c redactCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, redactFields(fields))
}
