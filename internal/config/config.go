// Package config binds the CLI flag surface to viper, following the
// teacher's cobra-flags-bound-to-viper-keys idiom.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	yaml "go.yaml.in/yaml/v2"

	"github.com/chembl-text2sql/text2sql/internal/output"
	"github.com/chembl-text2sql/text2sql/internal/promptbuild"
)

// Config holds every runtime setting the CLI surface exposes (spec.md §6).
type Config struct {
	Question string

	Provider       string
	DBPath         string
	SQLModel       string
	SQLModelList   string
	SQLCycle       string
	JudgeModel     string
	JudgeModelList string
	JudgeCycle     string
	Auto           bool

	MaxRetries          int
	Timeout             time.Duration
	HistoryWindow       int
	JudgeScoreThreshold float64
	JudgeCallRetries    int

	SchemaDocsPath   string
	SchemaSampleRows int
	SchemaMaxCellLen int
	PromptHintsPath  string
	FilterProfile    promptbuild.FilterProfile

	MinContext            int
	MinRows               int
	StripUnrequestedLimit bool

	OutputBase       string
	OutputFile       string
	Format           output.Format
	IntermediateDir  string
	SaveIntermediate bool
	RunLabel         string

	Temperature      float64
	JudgeTemperature float64

	Verbosity int
	DryRun    bool
}

// BindFlags registers every flag on cmd and binds each to a viper key,
// matching the teacher's bindFlag(viperKey, flagName) pattern.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()

	f.String("config", "", "optional YAML file providing defaults for any flag below (mirrors multi-llm-review's --config, adapted to this flag surface); explicit flags still win")
	f.String("provider", "auto", "LLM backend: auto, anthropic, openrouter, openai, gemini, cerebras, zai, deepseek, local")
	f.StringP("db-path", "q", "", "path to the read-only ChEMBL SQLite file")
	f.StringP("model", "m", "", "model id shared by both sql-model and judge-model when set")
	f.String("sql-model", "", "model id for the SQL-writer role")
	f.String("sql-model-list", "", "comma-separated model-rotation candidates for the SQL-writer role, or one of the named buckets cheap/expensive/super/all")
	f.String("sql-cycle", "orderly", "SQL-writer rotation policy: orderly, random, cicada")
	f.String("judge-model", "", "model id for the judge/prompt-writer roles")
	f.String("judge-model-list", "", "comma-separated model-rotation candidates for the judge/prompt-writer roles, or one of the named buckets cheap/expensive/super/all")
	f.String("judge-cycle", "orderly", "judge rotation policy: orderly, random, cicada")

	f.Int("max-retries", 10, "maximum number of iterations before giving up")
	f.DurationP("timeout", "t", 30*time.Second, "per-query SQLite wall-clock timeout")
	f.Int("history-window", 5, "number of most recent iterations carried in the prompt")
	f.Float64("judge-score-threshold", 0.8, "minimum judge score treated as a stopping match")
	f.Int("judge-call-retries", 3, "judge-call retries on malformed output or invariant violation")

	f.String("schema-docs-path", "schema_docs.md", "cache path for the generated schema document")
	f.Int("schema-sample-rows", 3, "sample rows rendered per table in the schema document")
	f.Int("schema-max-cell-len", 80, "max characters per sampled cell in the schema document")
	f.String("prompt-hints-path", "", "optional path to a prompt-hints text file injected into the system prompt")
	f.String("filter-profile", "strict", "domain filter-guidance profile: strict or relaxed")

	f.Int("min-context", 0, "advertised judge-model context window in tokens (0 = unknown, defaults to sample mode)")
	f.Int("min-rows", 0, "row count below which an advisory note is added to the judge-facing result summary (not a failure); 0 disables the note")
	f.Bool("strip-unrequested-limit", true, "strip a trailing LIMIT the user did not ask for")

	f.String("output-base", "query_results", "filename stem, optionally with a directory, for the --auto result CSV")
	f.String("output-file", "", "optional explicit path for the final result file")
	f.StringP("format", "f", "json", "final result format: json, csv, table")
	f.String("intermediate-dir", "logs", "directory for intermediate CSVs and malformed-judge dumps")
	f.Bool("save-intermediate", false, "persist each iteration's result table to intermediate-dir")
	f.String("run-label", "", "label used to namespace artifact filenames (sanitized)")
	f.BoolP("auto", "a", false, "write the result as CSV to output-base_run-id.csv (run-id is a short uuid), or to --output-file when set, instead of stdout")

	f.Float64("temperature", 0.2, "sampling temperature for the SQL-writer and prompt-writer roles")
	f.Float64("judge-temperature", 0.0, "sampling temperature for the judge role")

	f.CountP("verbose", "v", "increase log verbosity (-v, -vv, -vvv)")
	f.Bool("dry-run", false, "generate SQL but never execute it or call the judge")

	_ = v.BindPFlags(f)
}

// loadConfigDefaults reads a flat YAML map of flag-name: value from path and
// merges it into v as config-layer defaults (below explicit flags/env, above
// each flag's built-in default), the way multi-llm-review's loadConfig feeds
// its Config struct — adapted here to this project's flat flag surface
// rather than multi-llm-review's nested providers/review/output schema.
func loadConfigDefaults(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var defaults map[string]interface{}
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return v.MergeConfigMap(defaults)
}

// FromViper materializes a Config from v, applying the --model shorthand
// (spec.md §6: -m sets both sql-model and judge-model when the specific
// flags are unset) and sanitizing run-label.
func FromViper(v *viper.Viper, question string) (Config, error) {
	if path := v.GetString("config"); path != "" {
		if err := loadConfigDefaults(v, path); err != nil {
			return Config{}, fmt.Errorf("loading --config: %w", err)
		}
	}

	sqlModel := v.GetString("sql-model")
	judgeModel := v.GetString("judge-model")
	if shared := v.GetString("model"); shared != "" {
		if sqlModel == "" {
			sqlModel = shared
		}
		if judgeModel == "" {
			judgeModel = shared
		}
	}

	profile := promptbuild.FilterProfile(strings.ToLower(v.GetString("filter-profile")))
	if profile != promptbuild.Strict && profile != promptbuild.Relaxed {
		return Config{}, fmt.Errorf("invalid --filter-profile %q: must be strict or relaxed", v.GetString("filter-profile"))
	}

	cfg := Config{
		Question: question,

		Provider:       v.GetString("provider"),
		DBPath:         v.GetString("db-path"),
		SQLModel:       sqlModel,
		SQLModelList:   v.GetString("sql-model-list"),
		SQLCycle:       v.GetString("sql-cycle"),
		JudgeModel:     judgeModel,
		JudgeModelList: v.GetString("judge-model-list"),
		JudgeCycle:     v.GetString("judge-cycle"),
		Auto:           v.GetBool("auto"),

		MaxRetries:          v.GetInt("max-retries"),
		Timeout:             v.GetDuration("timeout"),
		HistoryWindow:       v.GetInt("history-window"),
		JudgeScoreThreshold: v.GetFloat64("judge-score-threshold"),
		JudgeCallRetries:    v.GetInt("judge-call-retries"),

		SchemaDocsPath:   v.GetString("schema-docs-path"),
		SchemaSampleRows: v.GetInt("schema-sample-rows"),
		SchemaMaxCellLen: v.GetInt("schema-max-cell-len"),
		PromptHintsPath:  v.GetString("prompt-hints-path"),
		FilterProfile:    profile,

		MinContext:            v.GetInt("min-context"),
		MinRows:               v.GetInt("min-rows"),
		StripUnrequestedLimit: v.GetBool("strip-unrequested-limit"),

		OutputBase:       v.GetString("output-base"),
		OutputFile:       v.GetString("output-file"),
		Format:           output.ParseFormat(v.GetString("format")),
		IntermediateDir:  v.GetString("intermediate-dir"),
		SaveIntermediate: v.GetBool("save-intermediate"),
		RunLabel:         promptbuild.SanitizeRunLabel(v.GetString("run-label")),

		Temperature:      v.GetFloat64("temperature"),
		JudgeTemperature: v.GetFloat64("judge-temperature"),

		Verbosity: v.GetInt("verbose"),
		DryRun:    v.GetBool("dry-run"),
	}

	if cfg.DBPath == "" {
		return Config{}, fmt.Errorf("--db-path is required")
	}

	return cfg, nil
}
