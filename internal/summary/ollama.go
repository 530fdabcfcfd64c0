package summary

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

type OllamaSummarizer struct {
	client  *api.Client
	prompt  string
	model   string
	timeout time.Duration
}

// NewOllamaSummarizer accepts either a bare host:port or a full base URL. An
// empty prompt means DefaultPrompt.
func NewOllamaSummarizer(baseURL, prompt, model string, timeout time.Duration) *OllamaSummarizer {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		base = &url.URL{Scheme: "http", Host: baseURL, Path: "/"}
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}

	return &OllamaSummarizer{
		client:  api.NewClient(base, &http.Client{}),
		prompt:  prompt,
		model:   model,
		timeout: timeout,
	}
}

func (o *OllamaSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	req := &api.GenerateRequest{
		Model:   o.model,
		System:  o.prompt,
		Prompt:  text,
		Options: map[string]any{"temperature": rewriteTemperature},
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var reply strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		reply.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	if strings.TrimSpace(reply.String()) == "" {
		return "", fmt.Errorf("%w: empty reply", ErrMalformedReply)
	}
	return reply.String(), nil
}
