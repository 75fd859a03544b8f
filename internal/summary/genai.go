// Package summary implements the report summarizer on top of Google's
// Gemini API. Availability is best effort: callers degrade to a placeholder
// when this collaborator errors or times out.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"faultctl/internal/pipeline"
)

const (
	defaultModel   = "gemini-2.0-flash"
	requestTimeout = 15 * time.Second
)

// GenAISummarizer asks Gemini for a short prose summary of a run's log.
type GenAISummarizer struct {
	client *genai.Client
	model  string
}

// NewGenAISummarizer builds a summarizer from an API key.
func NewGenAISummarizer(ctx context.Context, apiKey, model string) (*GenAISummarizer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("summary: API key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("summary: create client: %w", err)
	}
	return &GenAISummarizer{client: client, model: model}, nil
}

// Summarize returns a short natural-language reading of the execution log.
func (s *GenAISummarizer) Summarize(ctx context.Context, req pipeline.Request, logText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	prompt := buildPrompt(req, logText)
	result, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("summary: generate: %w", err)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("summary: empty response")
	}
	return text, nil
}

func buildPrompt(req pipeline.Request, logText string) string {
	var b strings.Builder
	b.WriteString("Summarize this chaos engineering experiment run in two or three sentences for an operator. ")
	b.WriteString("Mention whether the fault injected and recovered cleanly.\n\n")
	fmt.Fprintf(&b, "Experiment kind: %s\n", req.DocumentKind)
	if req.Action != "" {
		fmt.Fprintf(&b, "Action: %s\n", req.Action)
	}
	if req.Target != "" {
		fmt.Fprintf(&b, "Target: %s\n", req.Target)
	}
	if req.Duration != "" {
		fmt.Fprintf(&b, "Duration: %s\n", req.Duration)
	}
	b.WriteString("\nExecution log:\n")
	b.WriteString(logText)
	return b.String()
}
