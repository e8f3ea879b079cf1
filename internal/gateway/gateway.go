// Package gateway provides the language model boundary.
//
// A Gateway sends one system prompt plus an ordered message list to a
// completion endpoint and returns the raw response text. It carries no
// business logic: retry policy belongs to callers, and transport or auth
// failures are wrapped but never interpreted. Rate limiting and outbound
// secret scrubbing live here because they are properties of the boundary,
// not of any caller.
//
// Construction is explicit: callers receive a Gateway and pass it down.
// Tests substitute Stub.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/counselsim/internal/metrics"
)

// Message roles understood by completion endpoints.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrUnknownProvider indicates an unrecognized provider name in config.
	ErrUnknownProvider = errors.New("unknown gateway provider")

	// ErrNoChoices indicates the endpoint returned no completion choices.
	ErrNoChoices = errors.New("completion returned no choices")
)

// Message is one turn of conversational context sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion request.
type Request struct {
	// System is the system role content. Empty means no system message.
	System string

	// Messages is the ordered conversational context.
	Messages []Message

	// Temperature is passed through to the endpoint.
	Temperature float64

	// Model overrides the configured default model when non-empty.
	Model string
}

// Gateway sends a completion request and returns the raw response text.
type Gateway interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// RateLimitConfig bounds outbound request rate.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate. Zero disables
	// client-side limiting.
	RequestsPerSecond float64 `json:"requests_per_second"`

	// Burst is the burst allowance when limiting is enabled.
	Burst int `json:"burst"`
}

// Config holds gateway construction parameters.
type Config struct {
	// Provider selects the implementation: "openai" (any OpenAI-compatible
	// endpoint) or "stub" (offline echo).
	Provider string `json:"provider"`

	// BaseURL is the endpoint base URL. Empty uses the provider default.
	BaseURL string `json:"base_url"`

	// APIKey authenticates with the endpoint. OpenAI-compatible servers
	// without auth accept a placeholder.
	APIKey string `json:"api_key"`

	// Model is the default model identifier.
	Model string `json:"model"`

	// Timeout bounds one completion call. Zero means no gateway-side bound.
	Timeout time.Duration `json:"timeout"`

	// RateLimit bounds outbound request rate.
	RateLimit RateLimitConfig `json:"rate_limit"`

	// ScrubOutbound redacts obvious secrets from outgoing content.
	ScrubOutbound bool `json:"scrub_outbound"`
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Timeout:  60 * time.Second,
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2,
			Burst:             4,
		},
		ScrubOutbound: true,
	}
}

// Option configures optional gateway collaborators.
type Option func(*options)

type options struct {
	metrics *metrics.Metrics
}

// WithMetrics attaches Prometheus metrics recording to the gateway.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// New constructs the Gateway selected by cfg.Provider.
func New(cfg Config, logger *zap.Logger, opts ...Option) (Gateway, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg, logger, opts...)
	case "stub":
		// Offline provider: echoes the latest user content so dialogue
		// plumbing can run without an endpoint.
		return NewStubFunc(func(req Request) (string, error) {
			for i := len(req.Messages) - 1; i >= 0; i-- {
				if req.Messages[i].Role == RoleUser {
					return req.Messages[i].Content, nil
				}
			}
			return "I see. Tell me more.", nil
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
