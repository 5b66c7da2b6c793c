package openai

import (
	"context"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/verifai/verifai/internal/domain/ai"
	"github.com/verifai/verifai/internal/infra/ai/prompt"
)

const maxTokens = 2048

// Client adapts the OpenAI chat API to the Analyzer port. Every failure mode
// (no credential, no text, network error, bad JSON) degrades to the fixed
// fallback result; the orchestrator never sees an error from here.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

// NewClient builds the adapter. An empty apiKey is valid and puts the
// adapter permanently on the fallback path.
func NewClient(apiKey, model string, timeout time.Duration, log *zap.Logger) *Client {
	c := &Client{model: model, timeout: timeout, log: log}
	if apiKey != "" {
		c.api = openai.NewClient(apiKey)
	}
	return c
}

func (c *Client) Analyze(ctx context.Context, req ai.Request) ai.Result {
	if c.api == nil || req.Text == "" {
		return prompt.Fallback()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.UserPrompt(req)},
		},
		Temperature: 0.2,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		c.log.Warn("provider call failed, using fallback",
			zap.String("document_id", req.DocumentID),
			zap.Error(err),
		)
		return prompt.Fallback()
	}
	if len(resp.Choices) == 0 {
		c.log.Warn("provider returned no choices, using fallback",
			zap.String("document_id", req.DocumentID),
		)
		return prompt.Fallback()
	}

	parsed, err := prompt.Parse(resp.Choices[0].Message.Content)
	if err != nil {
		c.log.Warn("provider response rejected, using fallback",
			zap.String("document_id", req.DocumentID),
			zap.Error(err),
		)
		return prompt.Fallback()
	}
	// A valid response with zero findings keeps its score and summary but
	// gets the baseline findings: the product never shows an empty report.
	if len(parsed.Findings) == 0 {
		fb := prompt.Fallback()
		fb.RiskScore = parsed.RiskScore
		fb.Summary = parsed.Summary
		return fb
	}
	return parsed
}
