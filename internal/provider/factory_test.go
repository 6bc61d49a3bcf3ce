package provider

import "testing"

func TestNewAutoPrecedence(t *testing.T) {
	cases := []struct {
		name     string
		cfg      Config
		model    string
		wantName string
	}{
		{
			name:     "claude model with anthropic key prefers anthropic",
			cfg:      Config{AnthropicAPIKey: "k", OpenRouterAPIKey: "k2"},
			model:    "claude-sonnet-4.5",
			wantName: "anthropic:claude-sonnet-4.5",
		},
		{
			name:     "non-claude model skips anthropic even if key present",
			cfg:      Config{AnthropicAPIKey: "k", OpenRouterAPIKey: "k2"},
			model:    "gpt-5.1-codex",
			wantName: "openrouter:gpt-5.1-codex",
		},
		{
			name:     "openrouter before openai",
			cfg:      Config{OpenRouterAPIKey: "k", OpenAIAPIKey: "k2"},
			wantName: "openrouter:openai/gpt-5.1-codex-mini",
		},
		{
			name:     "openai before gemini",
			cfg:      Config{OpenAIAPIKey: "k", GeminiAPIKey: "k2"},
			wantName: "openai:gpt-5.1-codex",
		},
		{
			name:     "gemini before cerebras",
			cfg:      Config{GeminiAPIKey: "k", CerebrasAPIKey: "k2"},
			wantName: "gemini:gemini-3-flash-preview",
		},
		{
			name:     "cerebras before zai",
			cfg:      Config{CerebrasAPIKey: "k", ZAIAPIKey: "k2"},
			wantName: "cerebras:zai-glm-4.7",
		},
		{
			name:     "deepseek never auto-selected",
			cfg:      Config{DeepSeekAPIKey: "k"},
			wantName: "local:qwen2.5:3b-instruct",
		},
		{
			name:     "no credentials falls back to local",
			cfg:      Config{},
			wantName: "local:qwen2.5:3b-instruct",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := New(tc.cfg, "auto", tc.model)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if p.Name() != tc.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tc.wantName)
			}
		})
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(Config{}, "nonexistent", "")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestModelListLocalAlwaysEmpty(t *testing.T) {
	for _, bucket := range []string{"cheap", "expensive", "super", "all"} {
		if got := ModelList("local", bucket); got != nil {
			t.Errorf("ModelList(local, %q) = %v, want nil", bucket, got)
		}
	}
}

func TestModelListAllDeduplicates(t *testing.T) {
	all := ModelList("anthropic", "all")
	seen := map[string]bool{}
	for _, m := range all {
		if seen[m] {
			t.Errorf("duplicate model %q in all bucket", m)
		}
		seen[m] = true
	}
	if len(all) == 0 {
		t.Error("expected non-empty all bucket for anthropic")
	}
}
