// Package bedrock adapts the AWS Bedrock Converse API to agentrt.Reasoner
// using the same JSON-decision-envelope approach as the Anthropic and
// OpenAI adapters, for deployments standardized on Bedrock-hosted models.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/fluxgraph/workflow-core/agentrt"
	"github.com/fluxgraph/workflow-core/coretypes"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client the
// Reasoner needs, matching *bedrockruntime.Client so tests can pass a mock.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock-backed Reasoner.
type Options struct {
	ModelID string
}

// Reasoner implements agentrt.Reasoner on top of Bedrock Converse.
type Reasoner struct {
	runtime RuntimeClient
	modelID string
}

// New builds a Reasoner from a Bedrock runtime client.
func New(runtime RuntimeClient, opts Options) (*Reasoner, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.ModelID == "" {
		return nil, errors.New("bedrock: model id is required")
	}
	return &Reasoner{runtime: runtime, modelID: opts.ModelID}, nil
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
	payload, err := json.Marshal(struct {
		View    coretypes.ContextView  `json:"view"`
		Task    coretypes.Task         `json:"task"`
		History []agentrt.ActionRecord `json:"history"`
	}{view, task, previousActions})
	if err != nil {
		return agentrt.Decision{}, fmt.Errorf("bedrock: build prompt: %w", err)
	}

	out, err := r.runtime.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: &r.modelID,
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{
				Value: systemPrompt + "\n\nRespond with a single JSON object matching the Decision schema and nothing else.",
			},
		},
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: string(payload)},
				},
			},
		},
	})
	if err != nil {
		return agentrt.Decision{}, fmt.Errorf("bedrock: converse: %w", err)
	}

	text, err := extractText(out)
	if err != nil {
		return agentrt.Decision{}, err
	}

	var env decisionEnvelope
	if err := json.Unmarshal([]byte(extractJSON(text)), &env); err != nil {
		return agentrt.Decision{}, fmt.Errorf("bedrock: decode decision: %w", err)
	}
	return agentrt.Decision{
		Reasoning:            env.Reasoning,
		SelectedAffordanceID: env.SelectedAffordanceID,
		Parameters:           env.Parameters,
		ShouldContinue:       env.ShouldContinue,
		Message:              env.Message,
	}, nil
}

func extractText(out *bedrockruntime.ConverseOutput) (string, error) {
	member, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("bedrock: unexpected converse output shape")
	}
	var sb strings.Builder
	for _, block := range member.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}
	return sb.String(), nil
}

func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
