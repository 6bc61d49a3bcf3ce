package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CompatProvider is a single back-end for every hosted endpoint that speaks
// the OpenAI-compatible /chat/completions wire shape: OpenRouter, Cerebras,
// Z.AI, and DeepSeek differ only in base URL, auth header value, and default
// model, so one table-configured client serves all four rather than four
// near-duplicate generated SDK clients.
type CompatProvider struct {
	providerName string
	apiKey       string
	modelName    string
	baseURL      string
	httpClient   *http.Client
}

// NewCompatProvider builds a CompatProvider for one of the OpenAI-compatible
// hosted back-ends. providerName is purely cosmetic (used in Name()).
func NewCompatProvider(providerName, apiKey, modelName, baseURL string) *CompatProvider {
	return &CompatProvider{
		providerName: providerName,
		apiKey:       apiKey,
		modelName:    modelName,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 180 * time.Second},
	}
}

func (p *CompatProvider) IsAvailable() bool { return p.apiKey != "" }
func (p *CompatProvider) Name() string      { return p.providerName + ":" + p.modelName }

func (p *CompatProvider) GenerateSQL(ctx context.Context, question, schemaDocs string, conversation []Message) (string, error) {
	msgs := conversation
	if len(msgs) == 0 {
		msgs = []Message{
			{Role: RoleSystem, Content: schemaDocs},
			{Role: RoleUser, Content: "Write a single SQL SELECT statement to answer: " + question},
		}
	}
	text, err := p.GenerateText(ctx, msgs, 0.2, 2048)
	if err != nil {
		return "", err
	}
	return CleanSQL(text), nil
}

type compatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compatRequest struct {
	Model       string          `json:"model"`
	Messages    []compatMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type compatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *CompatProvider) GenerateText(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	if !p.IsAvailable() {
		return "", NewError("no_credentials", p.providerName+" API key not set", false)
	}

	body := compatRequest{Model: p.modelName, Temperature: temperature, MaxTokens: maxTokens}
	for _, m := range messages {
		body.Messages = append(body.Messages, compatMessage{Role: string(m.Role), Content: m.Content})
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", NewError("marshal_failed", err.Error(), false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", NewError("request_build_failed", err.Error(), false)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", NewError("http_failed", err.Error(), true)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", NewError("http_status", fmt.Sprintf("status %d", resp.StatusCode), true)
	}
	if resp.StatusCode != http.StatusOK {
		return "", NewError("http_status", fmt.Sprintf("status %d", resp.StatusCode), false)
	}

	var out compatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", NewError("decode_failed", err.Error(), false)
	}
	if len(out.Choices) == 0 {
		return "", NewError("empty_response", "no choices in response", true)
	}
	return out.Choices[0].Message.Content, nil
}
