package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// rewriteTemperature keeps rewrites close to the source facts.
const rewriteTemperature = 0.2

type OpenAISummarizer struct {
	client  *openai.Client
	prompt  string
	model   string
	timeout time.Duration
}

// NewOpenAISummarizer creates a rephrase backend on any OpenAI-compatible API.
// Set baseURL to point at a local server (LM Studio, llama.cpp, Ollama's /v1
// endpoint); leave it empty for api.openai.com. An empty prompt means
// DefaultPrompt.
func NewOpenAISummarizer(baseURL, apiKey, prompt, model string, timeout time.Duration) *OpenAISummarizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return &OpenAISummarizer{
		client:  openai.NewClientWithConfig(cfg),
		prompt:  prompt,
		model:   model,
		timeout: timeout,
	}
}

// Summarize sends one article in FormatInput layout and returns the raw reply.
// A truncated or blank reply can never parse and is reported as
// ErrMalformedReply without further parsing.
func (o *OpenAISummarizer) Summarize(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: rewriteTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices from model %q", ErrMalformedReply, o.model)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		return "", fmt.Errorf("%w: reply truncated at the token limit", ErrMalformedReply)
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", fmt.Errorf("%w: empty reply", ErrMalformedReply)
	}

	return choice.Message.Content, nil
}
