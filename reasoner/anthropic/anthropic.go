// Package anthropic adapts the Anthropic Claude Messages API to
// agentrt.Reasoner, asking the model to pick one affordance from a
// ContextView and return its decision as structured JSON.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fluxgraph/workflow-core/agentrt"
	"github.com/fluxgraph/workflow-core/coretypes"
)

// MessagesClient captures the subset of the Anthropic SDK client the
// Reasoner needs, so tests can substitute a stub in place of the real
// *sdk.MessageService.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures the Anthropic-backed Reasoner.
type Options struct {
	Model     string
	MaxTokens int64
}

// Reasoner implements agentrt.Reasoner on top of Claude Messages.
type Reasoner struct {
	msg       MessagesClient
	model     string
	maxTokens int64
}

// New builds a Reasoner from an Anthropic Messages client.
func New(msg MessagesClient, opts Options) (*Reasoner, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("anthropic: model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Reasoner{msg: msg, model: opts.Model, maxTokens: maxTokens}, nil
}

// NewFromAPIKey constructs a Reasoner using the default Anthropic HTTP
// client authenticated with apiKey. An empty apiKey is rejected; the key is
// not taken from the environment.
func NewFromAPIKey(apiKey, model string) (*Reasoner, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&client.Messages, Options{Model: model})
}

// decisionEnvelope is the JSON shape the prompt asks the model to reply
// with; it mirrors agentrt.Decision field-for-field.
type decisionEnvelope struct {
	Reasoning            string         `json:"reasoning"`
	SelectedAffordanceID string         `json:"selectedAffordanceId"`
	Parameters           map[string]any `json:"parameters"`
	ShouldContinue       bool           `json:"shouldContinue"`
	Message              string         `json:"message"`
}

// ReasonAboutContext implements agentrt.Reasoner.
func (r *Reasoner) ReasonAboutContext(ctx context.Context, systemPrompt string, view coretypes.ContextView, task coretypes.Task, previousActions []agentrt.ActionRecord) (agentrt.Decision, error) {
	prompt, err := buildUserPrompt(view, task, previousActions)
	if err != nil {
		return agentrt.Decision{}, fmt.Errorf("anthropic: build prompt: %w", err)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(r.model),
		MaxTokens: r.maxTokens,
		System: []sdk.TextBlockParam{
			{Text: systemPrompt + "\n\nRespond with a single JSON object matching the Decision schema and nothing else."},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}

	msg, err := r.msg.New(ctx, params)
	if err != nil {
		return agentrt.Decision{}, fmt.Errorf("anthropic: messages.new: %w", err)
	}

	text := extractText(msg)
	var env decisionEnvelope
	if err := json.Unmarshal([]byte(extractJSON(text)), &env); err != nil {
		return agentrt.Decision{}, fmt.Errorf("anthropic: decode decision: %w", err)
	}
	return agentrt.Decision{
		Reasoning:            env.Reasoning,
		SelectedAffordanceID: env.SelectedAffordanceID,
		Parameters:           env.Parameters,
		ShouldContinue:       env.ShouldContinue,
		Message:              env.Message,
	}, nil
}

func buildUserPrompt(view coretypes.ContextView, task coretypes.Task, previousActions []agentrt.ActionRecord) (string, error) {
	payload := struct {
		View    coretypes.ContextView    `json:"view"`
		Task    coretypes.Task           `json:"task"`
		History []agentrt.ActionRecord   `json:"history"`
	}{View: view, Task: task, History: previousActions}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func extractText(msg *sdk.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if text := block.AsText(); text.Text != "" {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}

// extractJSON strips any leading/trailing prose the model adds around the
// JSON object, taking the first '{' through the matching last '}'.
func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
