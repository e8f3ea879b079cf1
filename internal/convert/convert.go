// Package convert turns free-form case records into validated structured
// records by prompting a language model and repairing its output.
//
// Each attempt is all-or-nothing: the response is fence-stripped, strictly
// parsed, and validated against the record schema. A failed attempt feeds
// the exact error message back to the model together with the original
// record, up to a bounded number of repairs. The converter keeps no state
// between calls and is safe for concurrent use on independent records.
package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/counselsim/internal/gateway"
	"github.com/fyrsmithlabs/counselsim/internal/metrics"
	"github.com/fyrsmithlabs/counselsim/pkg/schema"
)

// DefaultMaxRetries is the repair budget applied to negative retry counts
// unless WithMaxRetries configured another.
const DefaultMaxRetries = 2

// FailedError reports an exhausted repair budget. Attempts counts every
// model call made, and Last carries the parse or validation error from the
// final attempt.
type FailedError struct {
	Attempts int
	Last     error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("conversion failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *FailedError) Unwrap() error {
	return e.Last
}

// runState tracks where a conversion run is in its lifecycle.
type runState int

const (
	stateAttempting runState = iota
	stateRepairing
	stateSucceeded
	stateExhausted
)

// Converter drives the convert-validate-repair loop over a gateway.
type Converter struct {
	gw          gateway.Gateway
	logger      *zap.Logger
	metrics     *metrics.Metrics
	temperature float64
	model       string
	maxRetries  int
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics attaches conversion metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Converter) {
		c.metrics = m
	}
}

// WithMaxRetries changes the repair budget used when Convert is called
// with a negative retry count. Negative values are ignored.
func WithMaxRetries(n int) Option {
	return func(c *Converter) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithTemperature sets the sampling temperature for conversion calls.
func WithTemperature(t float64) Option {
	return func(c *Converter) {
		c.temperature = t
	}
}

// WithModel overrides the gateway's default model for conversion calls.
func WithModel(model string) Option {
	return func(c *Converter) {
		c.model = model
	}
}

// New creates a Converter over the given gateway.
func New(gw gateway.Gateway, opts ...Option) *Converter {
	c := &Converter{
		gw:         gw,
		logger:     zap.NewNop(),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert sends the case record with the system prompt and returns the
// validated structured record. On parse or validation failure it re-prompts
// with the previous error up to maxRetries times, so an always-invalid
// model is called exactly maxRetries+1 times. A negative maxRetries uses
// the converter's configured budget. A transport error aborts the run
// immediately; it is not repairable.
func (c *Converter) Convert(ctx context.Context, caseRecord map[string]any, systemPrompt string, maxRetries int) (*schema.Record, error) {
	if maxRetries < 0 {
		maxRetries = c.maxRetries
	}

	recordJSON, err := json.Marshal(caseRecord)
	if err != nil {
		return nil, fmt.Errorf("serializing case record: %w", err)
	}

	var (
		state    = stateAttempting
		prompt   = string(recordJSON)
		attempts = 0
		lastErr  error
		result   *schema.Record
	)

	for state != stateSucceeded && state != stateExhausted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attempts++
		c.metrics.RecordConversionAttempt()
		c.logger.Debug("conversion attempt",
			zap.Int("attempt", attempts),
			zap.Bool("repair", state == stateRepairing),
		)

		reply, err := c.gw.Complete(ctx, gateway.Request{
			System:      systemPrompt,
			Messages:    []gateway.Message{{Role: gateway.RoleUser, Content: prompt}},
			Temperature: c.temperature,
			Model:       c.model,
		})
		if err != nil {
			c.metrics.RecordConversion("error")
			return nil, fmt.Errorf("completion failed on attempt %d: %w", attempts, err)
		}

		result, lastErr = decodeRecord(reply)
		if lastErr == nil {
			state = stateSucceeded
			continue
		}

		if attempts > maxRetries {
			state = stateExhausted
			continue
		}
		prompt = repairPrompt(lastErr.Error(), string(recordJSON))
		state = stateRepairing
	}

	if state == stateExhausted {
		c.metrics.RecordConversion("exhausted")
		c.logger.Warn("conversion exhausted",
			zap.Int("attempts", attempts),
			zap.Error(lastErr),
		)
		return nil, &FailedError{Attempts: attempts, Last: lastErr}
	}

	c.metrics.RecordConversion("ok")
	c.logger.Info("conversion succeeded", zap.Int("attempts", attempts))
	return result, nil
}

// decodeRecord parses and validates one model reply.
func decodeRecord(reply string) (*schema.Record, error) {
	raw, err := parseObject(reply)
	if err != nil {
		return nil, err
	}
	return schema.FromMap(raw)
}

// repairPrompt asks the model to fix its previous response. The error
// message goes in verbatim; stable validator wording is what makes the
// repair targeted.
func repairPrompt(errMsg, recordJSON string) string {
	var b strings.Builder
	b.WriteString("Your previous response could not be used.\n\n")
	b.WriteString("Error: ")
	b.WriteString(errMsg)
	b.WriteString("\n\nHere is the original case record again:\n")
	b.WriteString(recordJSON)
	b.WriteString("\n\nReturn only the corrected JSON object, with no code fences and no commentary.")
	return b.String()
}
