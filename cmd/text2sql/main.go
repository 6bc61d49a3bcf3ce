// Command text2sql answers a natural-language question against a
// read-only ChEMBL SQLite database by driving the closed-loop prompt
// writer / SQL writer / judge pipeline to a stopping score.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chembl-text2sql/text2sql/internal/config"
	"github.com/chembl-text2sql/text2sql/internal/dotenv"
	"github.com/chembl-text2sql/text2sql/internal/iterate"
	"github.com/chembl-text2sql/text2sql/internal/metrics"
	"github.com/chembl-text2sql/text2sql/internal/output"
	"github.com/chembl-text2sql/text2sql/internal/provider"
	"github.com/chembl-text2sql/text2sql/internal/schedule"
	"github.com/chembl-text2sql/text2sql/internal/schema"
	"github.com/chembl-text2sql/text2sql/internal/sqlexec"
	"github.com/chembl-text2sql/text2sql/internal/stagelog"
	"github.com/chembl-text2sql/text2sql/internal/tracing"
)

func main() {
	dotenv.LoadOnce(nil, false)

	v := viper.New()
	rootCmd := &cobra.Command{
		Use:   "text2sql [question]",
		Short: "Answer a natural-language question against ChEMBL by iterating SQL against a judge",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, v)
		},
	}
	config.BindFlags(rootCmd, v)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string, v *viper.Viper) error {
	question, err := resolveQuestion(args)
	if err != nil {
		return err
	}

	cfg, err := config.FromViper(v, question)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Verbosity)
	emitter := stagelog.NewSlogEmitter(logger)

	db, err := sqlexec.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	sp, err := buildSystemPrompt(db, cfg)
	if err != nil {
		return fmt.Errorf("building system prompt: %w", err)
	}

	providerCfg := provider.ConfigFromEnv()

	sqlModels := resolveModelList(cfg.Provider, cfg.SQLModelList)
	judgeModels := resolveModelList(cfg.Provider, cfg.JudgeModelList)

	sqlSchedule := schedule.Build(sqlModels, cfg.MaxRetries, schedule.Policy(cfg.SQLCycle))
	judgeSchedule := schedule.Build(judgeModels, cfg.MaxRetries, schedule.Policy(cfg.JudgeCycle))

	sqlFactory := func(model string) (provider.Provider, error) {
		return provider.New(providerCfg, cfg.Provider, model)
	}
	judgeFactory := func(model string) (provider.Provider, error) {
		return provider.New(providerCfg, cfg.Provider, model)
	}

	controller := iterate.New(
		iterate.Config{
			MaxRetries:            cfg.MaxRetries,
			HistoryWindow:         cfg.HistoryWindow,
			JudgeScoreThreshold:   cfg.JudgeScoreThreshold,
			JudgeCallRetries:      cfg.JudgeCallRetries,
			FilterProfile:         cfg.FilterProfile,
			StripUnrequestedLimit: cfg.StripUnrequestedLimit,
			Timeout:               cfg.Timeout,
			Temperature:           cfg.Temperature,
			JudgeTemperature:      cfg.JudgeTemperature,
			DryRun:                cfg.DryRun,
			JudgeContextTokens:    cfg.MinContext,
			MinRows:               cfg.MinRows,
			SaveIntermediate:      cfg.SaveIntermediate,
			IntermediateDir:       cfg.IntermediateDir,
			RunLabel:              cfg.RunLabel,
		},
		sp,
		sqlFactory, judgeFactory,
		sqlSchedule, judgeSchedule,
		cfg.SQLModel, cfg.JudgeModel,
		emitter,
	)
	controller.SetMetrics(metrics.New(nil))
	controller.SetTracer(tracing.New(nil), cfg.RunLabel)

	exec := func(ctx context.Context, query string, timeout time.Duration) (sqlexec.Table, error) {
		return sqlexec.Run(ctx, db, query, timeout)
	}

	result, err := controller.Run(context.Background(), question, exec)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	if result == nil {
		fmt.Fprintln(os.Stderr, "no result found within max-retries")
		os.Exit(2)
	}

	format := cfg.Format
	outputPath := cfg.OutputFile
	if cfg.Auto {
		format = output.FormatCSV
		if outputPath == "" {
			outputPath = fmt.Sprintf("%s_%s.csv", cfg.OutputBase, shortRunID())
		}
	}

	dest := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		dest = f
	}
	return output.Write(dest, result.Table, format)
}

func resolveQuestion(args []string) (string, error) {
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}

	stat, statErr := os.Stdin.Stat()
	if statErr == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			return "", fmt.Errorf("reading question from stdin: %w", err)
		}
		q := strings.TrimSpace(string(data))
		if q != "" {
			return q, nil
		}
	}
	return "", fmt.Errorf("no question supplied: pass it as an argument or pipe it on stdin")
}

func buildSystemPrompt(db *sql.DB, cfg config.Config) (schema.SystemPrompt, error) {
	var docs string
	if !schema.NeedsRegeneration(cfg.SchemaDocsPath, cfg.DBPath) {
		cached, err := os.ReadFile(cfg.SchemaDocsPath)
		if err == nil {
			docs = string(cached)
		}
	}
	if docs == "" {
		generated, err := schema.GenerateDocs(db, schema.Options{
			SampleRows: cfg.SchemaSampleRows,
			MaxCellLen: cfg.SchemaMaxCellLen,
		})
		if err != nil {
			return schema.SystemPrompt{}, err
		}
		docs = generated
		_ = os.WriteFile(cfg.SchemaDocsPath, []byte(docs), 0o644)
	}

	var hints string
	if cfg.PromptHintsPath != "" {
		if data, err := os.ReadFile(cfg.PromptHintsPath); err == nil {
			hints = strings.TrimSpace(string(data))
		}
	}

	return schema.BuildSystemPrompt(docs, hints), nil
}

// resolveModelList interprets a --sql-model-list/--judge-model-list value:
// one of the named buckets (cheap, expensive, super, all) resolves via
// provider.ModelList against the active provider's catalog; anything else
// is treated as a raw comma-separated list of model ids.
func resolveModelList(providerName, listValue string) []string {
	switch strings.ToLower(strings.TrimSpace(listValue)) {
	case "cheap", "expensive", "super", "all":
		return provider.ModelList(providerName, listValue)
	default:
		return splitModels(listValue)
	}
}

func splitModels(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	var out []string
	for _, m := range strings.Split(csv, ",") {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// shortRunID produces the uuid suffix spec.md's --auto filename uses in
// place of the original's timestamp-only run id, avoiding collisions when
// two runs land in the same second.
func shortRunID() string {
	return uuid.NewString()[:8]
}

func newLogger(verbosity int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbosity >= 3:
		level = slog.LevelDebug
	case verbosity >= 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
