package provider

import (
	"context"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider talks to Claude directly via anthropic-sdk-go.
//
// When the configured model name is a Claude family model, the system
// block is wrapped with an ephemeral cache-control marker so that the
// immutable system prompt (stable across every iteration of a run) is
// served from the provider's prompt cache after the first call.
type AnthropicProvider struct {
	apiKey    string
	modelName string
	client    anthropicClient
}

type anthropicClient interface {
	createMessage(ctx context.Context, systemPrompt string, messages []Message, maxTokens int, temperature float64) (string, error)
}

func NewAnthropicProvider(apiKey, modelName string) *AnthropicProvider {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &AnthropicProvider{
		apiKey:    apiKey,
		modelName: modelName,
		client:    &anthropicDefaultClient{apiKey: apiKey, modelName: modelName},
	}
}

func (p *AnthropicProvider) IsAvailable() bool { return p.apiKey != "" }

func (p *AnthropicProvider) Name() string { return "anthropic:" + p.modelName }

func (p *AnthropicProvider) GenerateSQL(ctx context.Context, question, schemaDocs string, conversation []Message) (string, error) {
	msgs := conversation
	if len(msgs) == 0 {
		msgs = []Message{
			{Role: RoleSystem, Content: schemaDocs},
			{Role: RoleUser, Content: "Write a single SQL SELECT statement to answer: " + question},
		}
	}
	text, err := p.chat(ctx, msgs, 0.2, 2048)
	if err != nil {
		return "", err
	}
	return CleanSQL(text), nil
}

func (p *AnthropicProvider) GenerateText(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	return p.chat(ctx, messages, temperature, maxTokens)
}

func (p *AnthropicProvider) chat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if !p.IsAvailable() {
		return "", NewError("no_credentials", "ANTHROPIC_API_KEY not set", false)
	}

	system, rest := extractSystem(messages)
	text, err := p.client.createMessage(ctx, system, rest, maxTokens, temperature)
	if err != nil {
		return "", NewError("request_failed", err.Error(), true)
	}
	return text, nil
}

func extractSystem(messages []Message) (string, []Message) {
	var system strings.Builder
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return system.String(), rest
}

type anthropicDefaultClient struct {
	apiKey    string
	modelName string
}

func (c *anthropicDefaultClient) createMessage(ctx context.Context, systemPrompt string, messages []Message, maxTokens int, temperature float64) (string, error) {
	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	msgs := make([]anthropicsdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		}
	}

	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		Messages:  msgs,
		MaxTokens: int64(maxTokens),
	}

	if systemPrompt != "" {
		block := anthropicsdk.TextBlockParam{Text: systemPrompt}
		if strings.Contains(strings.ToLower(c.modelName), "claude") {
			block.CacheControl = anthropicsdk.NewCacheControlEphemeralParam()
		}
		params.System = []anthropicsdk.TextBlockParam{block}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			if out.Len() > 0 {
				out.WriteString("\n")
			}
			out.WriteString(tb.Text)
		}
	}
	return out.String(), nil
}
