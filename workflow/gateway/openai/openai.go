// Package openai provides a workflow gateway backed by OpenAI's chat
// completion API.
package openai

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/maestro-ai/maestro-go/workflow/gateway"
)

// DefaultModel is used when no model is specified.
const DefaultModel = "gpt-4o"

// Gateway implements gateway.Gateway using the official openai-go client.
// Safe for concurrent use.
type Gateway struct {
	client *openai.Client
	model  string
}

// New creates a GPT-backed gateway. An empty model selects DefaultModel.
//
// The API key should come from the environment (OPENAI_API_KEY), never
// source code.
func New(apiKey, model string) *Gateway {
	if model == "" {
		model = DefaultModel
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &Gateway{
		client: &client,
		model:  model,
	}
}

// Name returns "openai".
func (g *Gateway) Name() string { return "openai" }

// Invoke sends the request as a chat completion and returns the first
// choice's content.
func (g *Gateway) Invoke(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(req.System),
				},
			},
		})
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: openai.String(req.Prompt),
			},
		},
	})

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(g.model),
		Messages: messages,
	})
	if err != nil {
		return nil, g.wrapError(err)
	}

	if len(completion.Choices) == 0 {
		return nil, &gateway.Error{
			Gateway: g.Name(),
			Code:    "parse_error",
			Message: "completion contained no choices",
		}
	}

	return &gateway.Result{
		Output:     completion.Choices[0].Message.Content,
		TokensUsed: int(completion.Usage.TotalTokens),
		Model:      g.model,
	}, nil
}

func (g *Gateway) wrapError(err error) *gateway.Error {
	msg := err.Error()
	code := "api_error"
	retryable := false
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		code = "rate_limit"
		retryable = true
	case strings.Contains(msg, "401") || strings.Contains(msg, "invalid_api_key"):
		code = "auth"
	case strings.Contains(msg, "500") || strings.Contains(msg, "503"):
		retryable = true
	}
	return &gateway.Error{
		Gateway:   g.Name(),
		Code:      code,
		Message:   "OpenAI API call failed",
		Retryable: retryable,
		Err:       err,
	}
}
