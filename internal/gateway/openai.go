package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/counselsim/internal/metrics"
)

// OpenAI is a Gateway backed by an OpenAI-compatible chat completion
// endpoint. It works against api.openai.com as well as self-hosted servers
// (vLLM, TEI-style gateways) via BaseURL.
type OpenAI struct {
	llm     *openai.LLM
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewOpenAI creates an OpenAI-compatible gateway from cfg.
func NewOpenAI(cfg Config, logger *zap.Logger, opts ...Option) (*OpenAI, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// The client requires a token even for endpoints that ignore auth.
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	clientOpts := []openai.Option{openai.WithToken(apiKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		clientOpts = append(clientOpts, openai.WithModel(cfg.Model))
	}

	llm, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		burst := cfg.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), burst)
	}

	return &OpenAI{
		llm:     llm,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
		metrics: o.metrics,
	}, nil
}

// Complete sends one completion request. The call blocks until the endpoint
// responds, the context is done, or the configured timeout elapses.
func (g *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	msgs := g.buildMessages(req)

	callOpts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.Model != "" {
		callOpts = append(callOpts, llms.WithModel(req.Model))
	}

	start := time.Now()
	resp, err := g.llm.GenerateContent(ctx, msgs, callOpts...)
	elapsed := time.Since(start)

	if err != nil {
		g.metrics.RecordGatewayRequest("openai", "error", elapsed.Seconds())
		return "", fmt.Errorf("completion request: %w", err)
	}
	g.metrics.RecordGatewayRequest("openai", "ok", elapsed.Seconds())

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	g.logger.Debug("completion call",
		zap.Int("messages", len(msgs)),
		zap.Duration("duration", elapsed),
	)

	return resp.Choices[0].Content, nil
}

// buildMessages converts a Request into the client's message format,
// scrubbing outbound content when configured.
func (g *OpenAI) buildMessages(req Request) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(req.Messages)+1)

	if req.System != "" {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, g.outbound(req.System)))
	}

	for _, m := range req.Messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case RoleAssistant:
			role = llms.ChatMessageTypeAI
		case RoleSystem:
			role = llms.ChatMessageTypeSystem
		}
		out = append(out, llms.TextParts(role, g.outbound(m.Content)))
	}

	return out
}

func (g *OpenAI) outbound(content string) string {
	if !g.cfg.ScrubOutbound {
		return content
	}
	return scrubSecrets(content)
}

// Ensure OpenAI implements Gateway.
var _ Gateway = (*OpenAI)(nil)
