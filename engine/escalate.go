package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/anthropics/anthropic-sdk-go"
)

// Escalator re-asks a question on a bigger model when the local answer
// fails quality checks. Implementations must be safe for concurrent use.
type Escalator interface {
	Escalate(ctx context.Context, query, contextText, systemPrompt string) (string, error)
}

// RemoteEscalator sends escalated queries to a hosted Claude model.
type RemoteEscalator struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewRemoteEscalator wraps an Anthropic client. Zero maxTokens defaults
// to 1024.
func NewRemoteEscalator(client *anthropic.Client, model anthropic.Model, maxTokens int64) *RemoteEscalator {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &RemoteEscalator{client: client, model: model, maxTokens: maxTokens}
}

// Escalate asks the remote model, folding retrieved context into the
// user turn the same way the local prompt builder does.
func (r *RemoteEscalator) Escalate(ctx context.Context, query, contextText, systemPrompt string) (string, error) {
	user := query
	if contextText != "" {
		user = fmt.Sprintf("Relevant context:\n%s\n\nQuestion: %s", contextText, query)
	}

	params := anthropic.MessageNewParams{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("remote escalation: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	log.Printf("[ESCALATE] remote model %s answered (%d input / %d output tokens)",
		r.model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return text, nil
}
