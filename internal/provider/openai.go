package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// OpenAIProvider talks to OpenAI's Responses API (not Chat Completions),
// matching the original tool's wire shape of an `input` item list rather
// than a `messages` array.
type OpenAIProvider struct {
	apiKey    string
	modelName string
	client    openaiClient
}

type openaiClient interface {
	respond(ctx context.Context, instructions string, messages []Message, maxTokens int, temperature float64) (string, error)
}

func NewOpenAIProvider(apiKey, modelName string) *OpenAIProvider {
	if modelName == "" {
		modelName = "gpt-5.1-codex"
	}
	return &OpenAIProvider{
		apiKey:    apiKey,
		modelName: modelName,
		client:    &openaiDefaultClient{apiKey: apiKey, modelName: modelName},
	}
}

func (p *OpenAIProvider) IsAvailable() bool { return p.apiKey != "" }
func (p *OpenAIProvider) Name() string      { return "openai:" + p.modelName }

func (p *OpenAIProvider) GenerateSQL(ctx context.Context, question, schemaDocs string, conversation []Message) (string, error) {
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

func (p *OpenAIProvider) GenerateText(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	return p.chat(ctx, messages, temperature, maxTokens)
}

func (p *OpenAIProvider) chat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if !p.IsAvailable() {
		return "", NewError("no_credentials", "OPENAI_API_KEY not set", false)
	}

	instructions, rest := extractSystem(messages)
	text, err := p.client.respond(ctx, instructions, rest, maxTokens, temperature)
	if err != nil {
		return "", NewError("request_failed", err.Error(), true)
	}
	return text, nil
}

type openaiDefaultClient struct {
	apiKey    string
	modelName string
}

func (c *openaiDefaultClient) respond(ctx context.Context, instructions string, messages []Message, maxTokens int, temperature float64) (string, error) {
	client := openai.NewClient(option.WithAPIKey(c.apiKey))

	var input strings.Builder
	for _, m := range messages {
		if input.Len() > 0 {
			input.WriteString("\n\n")
		}
		input.WriteString(strings.ToUpper(string(m.Role)) + ": " + m.Content)
	}

	params := responses.ResponseNewParams{
		Model: openai.ChatModel(c.modelName),
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(input.String())},
	}
	if instructions != "" {
		params.Instructions = openai.String(instructions)
	}
	if temperature > 0 {
		params.Temperature = openai.Float(temperature)
	}

	resp, err := client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}

	return resp.OutputText(), nil
}
