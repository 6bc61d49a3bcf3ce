package provider

import (
	"fmt"
	"os"
	"strings"
)

// Config carries the environment and overrides the factory needs to
// construct any back-end. BaseURLs are optional per-provider overrides;
// zero value means "use the documented default for that back-end."
type Config struct {
	AnthropicAPIKey  string
	OpenRouterAPIKey string
	OpenAIAPIKey     string
	GeminiAPIKey     string
	CerebrasAPIKey   string
	ZAIAPIKey        string
	DeepSeekAPIKey   string

	OpenRouterBaseURL string
	CerebrasBaseURL   string
	ZAIBaseURL        string
	DeepSeekBaseURL   string
	OllamaBaseURL     string
}

// ConfigFromEnv reads every credential and base-URL override from the
// process environment, matching spec.md §6's environment variable list.
func ConfigFromEnv() Config {
	return Config{
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		CerebrasAPIKey:   os.Getenv("CEREBRAS_API_KEY"),
		ZAIAPIKey:        os.Getenv("ZAI_API_KEY"),
		DeepSeekAPIKey:   os.Getenv("DEEPSEEK_API_KEY"),

		OpenRouterBaseURL: firstNonEmpty(os.Getenv("OPENROUTER_BASE_URL"), "https://openrouter.ai/api/v1"),
		CerebrasBaseURL:   firstNonEmpty(os.Getenv("CEREBRAS_BASE_URL"), "https://api.cerebras.ai/v1"),
		ZAIBaseURL:        firstNonEmpty(os.Getenv("ZAI_BASE_URL"), os.Getenv("ZAI_CODING_BASE_URL"), "https://api.z.ai/api/paas/v4"),
		DeepSeekBaseURL:   firstNonEmpty(os.Getenv("DEEPSEEK_BASE_URL"), "https://api.deepseek.com/v1"),
		OllamaBaseURL:     firstNonEmpty(os.Getenv("OLLAMA_BASE_URL"), "http://localhost:11434"),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func isClaudeModel(modelName string) bool {
	if modelName == "" {
		return false
	}
	lower := strings.ToLower(modelName)
	return strings.Contains(lower, "claude") || strings.HasPrefix(modelName, "anthropic/")
}

// New constructs the named provider. name "auto" selects the first viable
// back-end by credential, preferring Anthropic-direct when model implies
// Claude. This precedence order is load-bearing: it mirrors the original
// tool's create_provider exactly, including the deliberate omission of
// DeepSeek from auto-resolution (DeepSeek is reachable only by explicit
// name).
func New(cfg Config, name, modelName string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auto"
	}

	switch name {
	case "auto":
		if isClaudeModel(modelName) && cfg.AnthropicAPIKey != "" {
			return NewAnthropicProvider(cfg.AnthropicAPIKey, orDefault(modelName, "claude-sonnet-4-5-20250929")), nil
		}
		if cfg.OpenRouterAPIKey != "" {
			return NewCompatProvider("openrouter", cfg.OpenRouterAPIKey, orDefault(modelName, "openai/gpt-5.1-codex-mini"), cfg.OpenRouterBaseURL), nil
		}
		if cfg.OpenAIAPIKey != "" {
			return NewOpenAIProvider(cfg.OpenAIAPIKey, orDefault(modelName, "gpt-5.1-codex")), nil
		}
		if cfg.GeminiAPIKey != "" {
			return NewGoogleProvider(cfg.GeminiAPIKey, orDefault(modelName, "gemini-3-flash-preview")), nil
		}
		if cfg.CerebrasAPIKey != "" {
			return NewCompatProvider("cerebras", cfg.CerebrasAPIKey, orDefault(modelName, "zai-glm-4.7"), cfg.CerebrasBaseURL), nil
		}
		if cfg.ZAIAPIKey != "" {
			return NewCompatProvider("zai", cfg.ZAIAPIKey, orDefault(modelName, "glm-4.7"), cfg.ZAIBaseURL), nil
		}
		return NewLocalProvider(orDefault(modelName, "qwen2.5:3b-instruct"), cfg.OllamaBaseURL), nil

	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("provider anthropic requested but ANTHROPIC_API_KEY not set")
		}
		return NewAnthropicProvider(cfg.AnthropicAPIKey, orDefault(modelName, "claude-sonnet-4.5")), nil

	case "openrouter":
		return NewCompatProvider("openrouter", cfg.OpenRouterAPIKey, orDefault(modelName, "openai/gpt-5.1-codex-mini"), cfg.OpenRouterBaseURL), nil

	case "openai":
		return NewOpenAIProvider(cfg.OpenAIAPIKey, orDefault(modelName, "gpt-5.1-codex")), nil

	case "gemini":
		return NewGoogleProvider(cfg.GeminiAPIKey, orDefault(modelName, "gemini-3-flash-preview")), nil

	case "zai":
		return NewCompatProvider("zai", cfg.ZAIAPIKey, orDefault(modelName, "glm-4.7"), cfg.ZAIBaseURL), nil

	case "cerebras":
		return NewCompatProvider("cerebras", cfg.CerebrasAPIKey, orDefault(modelName, "zai-glm-4.7"), cfg.CerebrasBaseURL), nil

	case "deepseek":
		return NewCompatProvider("deepseek", cfg.DeepSeekAPIKey, orDefault(modelName, "deepseek-reasoner"), cfg.DeepSeekBaseURL), nil

	case "local":
		return NewLocalProvider(orDefault(modelName, "Qwen/Qwen2.5-3B-Instruct"), cfg.OllamaBaseURL), nil

	default:
		return nil, fmt.Errorf("unknown provider %q: choose from auto, anthropic, openrouter, openai, gemini, zai, cerebras, deepseek, local", name)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ModelList resolves one of the named model-list buckets ("cheap",
// "expensive", "super", "all") to a concrete slice of model identifiers for
// the given provider family, for use with --sql-model-list/--judge-model-list.
// The "local" provider family always resolves to an empty list for every
// bucket (no catalog exists to enumerate), which callers must treat as "no
// schedule, use the single fixed model."
func ModelList(providerName, bucket string) []string {
	providerName = strings.ToLower(providerName)
	bucket = strings.ToLower(bucket)

	if providerName == "local" {
		return nil
	}

	catalogs := map[string]map[string][]string{
		"anthropic": {
			"cheap":     {"claude-haiku-4-5"},
			"expensive": {"claude-sonnet-4-5"},
			"super":     {"claude-opus-4-1"},
		},
		"openai": {
			"cheap":     {"gpt-5.1-codex-mini"},
			"expensive": {"gpt-5.1-codex"},
			"super":     {"gpt-5.1"},
		},
		"gemini": {
			"cheap":     {"gemini-3-flash-preview"},
			"expensive": {"gemini-3-pro-preview"},
			"super":     {"gemini-3-pro-preview"},
		},
		"openrouter": {
			"cheap":     {"openai/gpt-5.1-codex-mini"},
			"expensive": {"openai/gpt-5.1-codex", "anthropic/claude-sonnet-4.5"},
			"super":     {"anthropic/claude-opus-4.1"},
		},
		"cerebras": {
			"cheap":     {"llama3.1-8b"},
			"expensive": {"zai-glm-4.7"},
			"super":     {"zai-glm-4.7"},
		},
		"zai": {
			"cheap":     {"glm-4.7-flash"},
			"expensive": {"glm-4.7"},
			"super":     {"glm-4.7"},
		},
		"deepseek": {
			"cheap":     {"deepseek-chat"},
			"expensive": {"deepseek-reasoner"},
			"super":     {"deepseek-reasoner"},
		},
	}

	family, ok := catalogs[providerName]
	if !ok {
		return nil
	}
	if bucket == "all" {
		var all []string
		seen := map[string]bool{}
		for _, key := range []string{"cheap", "expensive", "super"} {
			for _, m := range family[key] {
				if !seen[m] {
					seen[m] = true
					all = append(all, m)
				}
			}
		}
		return all
	}
	return family[bucket]
}
