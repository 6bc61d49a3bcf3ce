package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GoogleProvider talks to Gemini via generateContent, using the SDK's
// dedicated SystemInstruction field rather than flattening the system
// message into the conversation turns.
type GoogleProvider struct {
	apiKey    string
	modelName string
	client    googleClient
}

type googleClient interface {
	generate(ctx context.Context, systemInstruction string, messages []Message, temperature float64) (string, error)
}

func NewGoogleProvider(apiKey, modelName string) *GoogleProvider {
	if modelName == "" {
		modelName = "gemini-3-flash-preview"
	}
	return &GoogleProvider{
		apiKey:    apiKey,
		modelName: modelName,
		client:    &googleDefaultClient{apiKey: apiKey, modelName: modelName},
	}
}

func (p *GoogleProvider) IsAvailable() bool { return p.apiKey != "" }
func (p *GoogleProvider) Name() string      { return "gemini:" + p.modelName }

func (p *GoogleProvider) GenerateSQL(ctx context.Context, question, schemaDocs string, conversation []Message) (string, error) {
	msgs := conversation
	if len(msgs) == 0 {
		msgs = []Message{
			{Role: RoleSystem, Content: schemaDocs},
			{Role: RoleUser, Content: "Write a single SQL SELECT statement to answer: " + question},
		}
	}
	text, err := p.chat(ctx, msgs, 0.2)
	if err != nil {
		return "", err
	}
	return CleanSQL(text), nil
}

func (p *GoogleProvider) GenerateText(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	return p.chat(ctx, messages, temperature)
}

func (p *GoogleProvider) chat(ctx context.Context, messages []Message, temperature float64) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if !p.IsAvailable() {
		return "", NewError("no_credentials", "GEMINI_API_KEY not set", false)
	}

	systemInstruction, rest := extractSystem(messages)
	text, err := p.client.generate(ctx, systemInstruction, rest, temperature)
	if err != nil {
		return "", NewError("request_failed", err.Error(), true)
	}
	return text, nil
}

type googleDefaultClient struct {
	apiKey    string
	modelName string
}

func (c *googleDefaultClient) generate(ctx context.Context, systemInstruction string, messages []Message, temperature float64) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}
	defer client.Close()

	gm := client.GenerativeModel(c.modelName)
	if temperature > 0 {
		gm.SetTemperature(float32(temperature))
	}
	if systemInstruction != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}
	}

	var parts []genai.Part
	for _, m := range messages {
		parts = append(parts, genai.Text(m.Content))
	}

	resp, err := gm.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	var out strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if txt, ok := part.(genai.Text); ok {
					if out.Len() > 0 {
						out.WriteString("\n")
					}
					out.WriteString(string(txt))
				}
			}
		}
	}
	return out.String(), nil
}
