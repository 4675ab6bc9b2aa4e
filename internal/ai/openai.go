// Package ai provides chat completions via the OpenAI API.
package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/jkindrix/quotebot/internal/circuitbreaker"
	"github.com/jkindrix/quotebot/internal/config"
	apperrors "github.com/jkindrix/quotebot/internal/errors"
)

// ServiceName labels the completion API in logs, errors and metrics.
const ServiceName = "openai"

// Prompt is one completion request: a system instruction and the user text.
// Purpose labels the call in metrics ("quote", "fallback").
type Prompt struct {
	Purpose string
	System  string
	User    string
}

// Recorder receives completion call metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordCompletionCall(purpose string, success bool, duration time.Duration)
	RecordCircuitRejected(purpose string)
	SetCircuitBreakerState(service string, state int)
}

type nopRecorder struct{}

func (nopRecorder) RecordCompletionCall(string, bool, time.Duration) {}
func (nopRecorder) RecordCircuitRejected(string)                     {}
func (nopRecorder) SetCircuitBreakerState(string, int)               {}

// Client handles communication with the chat completion API.
type Client struct {
	api            *openai.Client
	model          string
	circuitBreaker *circuitbreaker.CircuitBreaker
	recorder       Recorder
	logger         *zap.Logger
}

// NewClient creates a completion client. rec may be nil.
func NewClient(cfg *config.OpenAIConfig, rec Recorder, logger *zap.Logger) *Client {
	if rec == nil {
		rec = nopRecorder{}
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	apiConfig.HTTPClient = &http.Client{Timeout: timeout}

	cbConfig := &circuitbreaker.Config{
		FailureThreshold:    5,                // Open after 5 consecutive failures
		SuccessThreshold:    2,                // Close after 2 successes in half-open
		OpenTimeout:         30 * time.Second, // Wait 30s before trying again
		HalfOpenMaxRequests: 2,
		OnStateChange: func(name string, to circuitbreaker.State) {
			rec.SetCircuitBreakerState(name, int(to))
		},
	}

	return &Client{
		api:            openai.NewClientWithConfig(apiConfig),
		model:          cfg.Model,
		circuitBreaker: circuitbreaker.New(ServiceName, cbConfig, logger),
		recorder:       rec,
		logger:         logger,
	}
}

// Complete sends the prompt as a system and a user message and returns the
// text of the first choice. It makes exactly one HTTP attempt. An empty
// choice list or blank content is an error.
func (c *Client) Complete(ctx context.Context, p Prompt) (string, error) {
	var result string
	start := time.Now()

	err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var execErr error
		result, execErr = c.createCompletion(ctx, p)
		return execErr
	})

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		c.recorder.RecordCircuitRejected(p.Purpose)
		return "", apperrors.Wrap(err, "ai.Client.Complete", apperrors.CodeCircuitOpen, "completion service temporarily unavailable")
	}
	c.recorder.RecordCompletionCall(p.Purpose, err == nil, time.Since(start))
	if err != nil {
		return "", err
	}
	return result, nil
}

// CircuitBreakerStats returns the current circuit breaker statistics.
func (c *Client) CircuitBreakerStats() circuitbreaker.Stats {
	return c.circuitBreaker.Stats()
}

// IsCircuitOpen returns true if the circuit breaker is open.
func (c *Client) IsCircuitOpen() bool {
	return c.circuitBreaker.IsOpen()
}

func (c *Client) createCompletion(ctx context.Context, p Prompt) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
	}

	c.logger.Debug("requesting completion",
		zap.String("purpose", p.Purpose),
		zap.String("model", c.model),
		zap.Int("prompt_length", len(p.User)),
	)

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", apperrors.Wrap(ctxErr, "ai.Client.Complete", apperrors.CodeTimeout, "completion request aborted")
		}
		return "", apperrors.ExternalServiceError(ServiceName, err)
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", apperrors.ErrEmptyCompletion
	}

	c.logger.Debug("completion received",
		zap.String("purpose", p.Purpose),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return text, nil
}
