package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// LocalProvider is the offline fallback back-end, reached when no hosted
// credential is configured. It talks to a local Ollama server rather than
// loading a transformer model in-process (the original tool's approach),
// since no pure-Go in-process LLM inference runtime exists in this corpus
// or the wider ecosystem; Ollama's HTTP API is the idiomatic Go-side
// equivalent for local inference.
type LocalProvider struct {
	modelName  string
	baseURL    string
	httpClient *http.Client
}

func NewLocalProvider(modelName, baseURL string) *LocalProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "qwen2.5:3b-instruct"
	}
	return &LocalProvider{
		modelName:  modelName,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 180 * time.Second},
	}
}

// IsAvailable always reports true: there is no credential to check for the
// local back-end, only reachability at call time.
func (p *LocalProvider) IsAvailable() bool { return true }
func (p *LocalProvider) Name() string      { return "local:" + p.modelName }

func (p *LocalProvider) GenerateSQL(ctx context.Context, question, schemaDocs string, conversation []Message) (string, error) {
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

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// GenerateText flattens the chat transcript into a single prompt, since
// Ollama's /api/generate endpoint takes one prompt plus an optional system
// field rather than a role-tagged message array.
func (p *LocalProvider) GenerateText(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	system, rest := extractSystem(messages)

	var prompt strings.Builder
	for _, m := range rest {
		if prompt.Len() > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString(strings.ToUpper(string(m.Role)) + ": " + m.Content)
	}

	body := ollamaGenerateRequest{Model: p.modelName, Prompt: prompt.String(), System: system, Stream: false}
	data, err := json.Marshal(body)
	if err != nil {
		return "", NewError("marshal_failed", err.Error(), false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", NewError("request_build_failed", err.Error(), false)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", NewError("http_failed", err.Error(), true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", NewError("http_status", fmt.Sprintf("status %d", resp.StatusCode), true)
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", NewError("decode_failed", err.Error(), false)
	}
	return out.Response, nil
}
