// Package openai adapts the OpenAI Chat Completions API to
// agentrt.Reasoner, the same JSON-decision-envelope pattern the Anthropic
// adapter uses, on top of github.com/openai/openai-go.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/fluxgraph/workflow-core/agentrt"
	"github.com/fluxgraph/workflow-core/coretypes"
)

// ChatClient captures the subset of the openai-go client the Reasoner
// needs, so tests can substitute a stub.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Options configures the OpenAI-backed Reasoner.
type Options struct {
	Model string
}

// Reasoner implements agentrt.Reasoner on top of Chat Completions.
type Reasoner struct {
	chat  ChatClient
	model string
}

// New builds a Reasoner from a ChatClient.
func New(chat ChatClient, opts Options) (*Reasoner, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, errors.New("openai: model is required")
	}
	return &Reasoner{chat: chat, model: model}, nil
}

// NewFromAPIKey constructs a Reasoner using the default openai-go HTTP
// client authenticated with apiKey. An empty apiKey is rejected; the key is
// not taken from the environment.
func NewFromAPIKey(apiKey, model string) (*Reasoner, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&client.Chat.Completions, Options{Model: model})
}

type decisionEnvelope struct {
	Reasoning            string         `json:"reasoning"`
	SelectedAffordanceID string         `json:"selectedAffordanceId"`
	Parameters           map[string]any `json:"parameters"`
	ShouldContinue       bool           `json:"shouldContinue"`
	Message              string         `json:"message"`
}

// ReasonAboutContext implements agentrt.Reasoner.
func (r *Reasoner) ReasonAboutContext(ctx context.Context, systemPrompt string, view coretypes.ContextView, task coretypes.Task, previousActions []agentrt.ActionRecord) (agentrt.Decision, error) {
	userPayload, err := json.Marshal(struct {
		View    coretypes.ContextView  `json:"view"`
		Task    coretypes.Task         `json:"task"`
		History []agentrt.ActionRecord `json:"history"`
	}{view, task, previousActions})
	if err != nil {
		return agentrt.Decision{}, fmt.Errorf("openai: build prompt: %w", err)
	}

	resp, err := r.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: r.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt + "\n\nRespond with a single JSON object matching the Decision schema and nothing else."),
			openai.UserMessage(string(userPayload)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return agentrt.Decision{}, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return agentrt.Decision{}, errors.New("openai: no choices returned")
	}

	var env decisionEnvelope
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &env); err != nil {
		return agentrt.Decision{}, fmt.Errorf("openai: decode decision: %w", err)
	}
	return agentrt.Decision{
		Reasoning:            env.Reasoning,
		SelectedAffordanceID: env.SelectedAffordanceID,
		Parameters:           env.Parameters,
		ShouldContinue:       env.ShouldContinue,
		Message:              env.Message,
	}, nil
}
