// Package anthropic provides a workflow gateway backed by Anthropic's
// Claude API.
package anthropic

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/maestro-ai/maestro-go/workflow/gateway"
)

// DefaultModel is used when no model is specified.
const DefaultModel = "claude-3-5-sonnet-20241022"

// DefaultMaxTokens caps response length when the caller does not override it.
const DefaultMaxTokens = 4096

// Gateway implements gateway.Gateway using the official anthropic-sdk-go
// client. Safe for concurrent use; the SDK client handles concurrent
// requests internally.
//
// Example:
//
//	g := anthropic.New(os.Getenv("ANTHROPIC_API_KEY"), "")
//	res, err := g.Invoke(ctx, gateway.Request{Prompt: "Create a plan for ..."})
type Gateway struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// New creates a Claude-backed gateway. An empty model selects DefaultModel.
//
// The API key can be obtained from https://console.anthropic.com/ and should
// come from the environment, never source code.
func New(apiKey, model string) *Gateway {
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Gateway{
		client:    &client,
		model:     model,
		maxTokens: DefaultMaxTokens,
	}
}

// Name returns "anthropic".
func (g *Gateway) Name() string { return "anthropic" }

// Invoke sends the request to the Messages API and returns the concatenated
// text blocks of the response.
func (g *Gateway) Invoke(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	message, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, g.wrapError(err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &gateway.Result{
		Output:     sb.String(),
		TokensUsed: int(message.Usage.InputTokens + message.Usage.OutputTokens),
		Model:      g.model,
	}, nil
}

// wrapError maps SDK errors to gateway errors, marking rate limits and
// transient server errors retryable.
func (g *Gateway) wrapError(err error) *gateway.Error {
	msg := err.Error()
	code := "api_error"
	retryable := false
	switch {
	case strings.Contains(msg, "rate_limit") || strings.Contains(msg, "429"):
		code = "rate_limit"
		retryable = true
	case strings.Contains(msg, "401") || strings.Contains(msg, "authentication"):
		code = "auth"
	case strings.Contains(msg, "overloaded") || strings.Contains(msg, "529") || strings.Contains(msg, "500"):
		retryable = true
	}
	return &gateway.Error{
		Gateway:   g.Name(),
		Code:      code,
		Message:   "Claude API call failed",
		Retryable: retryable,
		Err:       err,
	}
}
