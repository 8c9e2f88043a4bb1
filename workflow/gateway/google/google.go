// Package google provides a workflow gateway backed by Google's Gemini API.
package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/maestro-ai/maestro-go/workflow/gateway"
)

// DefaultModel is used when no model is specified.
const DefaultModel = "gemini-1.5-flash"

// Gateway implements gateway.Gateway using the official generative-ai-go
// client. Safe for concurrent use. Close releases the underlying client.
type Gateway struct {
	client *genai.Client
	model  string
}

// New creates a Gemini-backed gateway. An empty model selects DefaultModel.
//
// The API key should come from the environment (GOOGLE_API_KEY), never
// source code.
func New(ctx context.Context, apiKey, model string) (*Gateway, error) {
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}
	return &Gateway{
		client: client,
		model:  model,
	}, nil
}

// Name returns "google".
func (g *Gateway) Name() string { return "google" }

// Close releases the underlying Gemini client.
func (g *Gateway) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Invoke sends the prompt to Gemini and returns the concatenated text parts
// of the first candidate.
func (g *Gateway) Invoke(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
	model := g.client.GenerativeModel(g.model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, g.wrapError(err)
	}

	if len(resp.Candidates) == 0 {
		return nil, &gateway.Error{
			Gateway: g.Name(),
			Code:    "parse_error",
			Message: "response contained no candidates",
		}
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, &gateway.Error{
			Gateway: g.Name(),
			Code:    "parse_error",
			Message: "candidate contained no content parts",
		}
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &gateway.Result{
		Output:     sb.String(),
		TokensUsed: tokens,
		Model:      g.model,
	}, nil
}

func (g *Gateway) wrapError(err error) *gateway.Error {
	msg := err.Error()
	code := "api_error"
	retryable := false
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "429"):
		code = "rate_limit"
		retryable = true
	case strings.Contains(msg, "API key") || strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		code = "auth"
	case strings.Contains(msg, "500") || strings.Contains(msg, "503"):
		retryable = true
	}
	return &gateway.Error{
		Gateway:   g.Name(),
		Code:      code,
		Message:   "Gemini API call failed",
		Retryable: retryable,
		Err:       err,
	}
}
