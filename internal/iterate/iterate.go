// Package iterate implements the iteration controller: the closed loop
// that coordinates the prompt-writer, SQL-writer, and judge roles against
// rolling history until the judge's score clears threshold or max_retries
// is exhausted.
package iterate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chembl-text2sql/text2sql/internal/judge"
	"github.com/chembl-text2sql/text2sql/internal/metrics"
	"github.com/chembl-text2sql/text2sql/internal/promptbuild"
	"github.com/chembl-text2sql/text2sql/internal/provider"
	"github.com/chembl-text2sql/text2sql/internal/schedule"
	"github.com/chembl-text2sql/text2sql/internal/schema"
	"github.com/chembl-text2sql/text2sql/internal/sqlexec"
	"github.com/chembl-text2sql/text2sql/internal/stagelog"
	"github.com/chembl-text2sql/text2sql/internal/summarize"
	"github.com/chembl-text2sql/text2sql/internal/tracing"
)

// Iteration is the immutable tuple appended to history after each round
// (spec.md §3).
type Iteration struct {
	N             int
	UP            string
	SQL           string
	SQLModel      string
	ResRowCount   int
	ResColumns    []string
	ResRender     string
	ResError      string
	JudgeText     string
	JudgeModel    string
	JudgeScore    *float64
	JudgeDecision *judge.Decision
}

// view renders it as the subset promptbuild.RenderHistory needs.
func (it Iteration) view() promptbuild.IterationView {
	resRender := it.ResRender
	if it.ResError != "" {
		resRender = "ERROR: " + it.ResError
	}
	return promptbuild.IterationView{
		N:         it.N,
		UP:        it.UP,
		SQL:       it.SQL,
		ResRender: resRender,
		JudgeText: it.JudgeText,
	}
}

// Config bundles every tunable the controller needs (spec.md §6's flags,
// minus I/O-path specifics that main.go resolves before calling in).
type Config struct {
	MaxRetries            int
	HistoryWindow         int
	JudgeScoreThreshold   float64
	JudgeCallRetries      int
	FilterProfile         promptbuild.FilterProfile
	StripUnrequestedLimit bool
	Timeout               time.Duration
	Temperature           float64
	JudgeTemperature      float64
	DryRun                bool

	// JudgeContextTokens is the advertised context window of the judge
	// back-end, feeding summarize.Budget; 0 leaves the summarizer in its
	// conservative sample-mode default.
	JudgeContextTokens int
	// MinRows, when >0, adds an advisory note to RES_n (not a forced
	// failure) when the result has fewer rows than this (SPEC_FULL.md
	// "--min-rows").
	MinRows int

	SaveIntermediate bool
	IntermediateDir  string
	RunLabel         string
}

// ProviderFactory resolves a model name to a usable Provider for a role.
type ProviderFactory func(model string) (provider.Provider, error)

// Controller owns the process-scoped resources: both provider factories,
// the schedules, the SP, and the rolling history. There is exactly one of
// these per run and it is not safe for concurrent use (spec.md §5: the
// loop is single-threaded sequential by design).
type Controller struct {
	cfg Config
	sp  schema.SystemPrompt

	sqlFactory   ProviderFactory
	judgeFactory ProviderFactory

	sqlSchedule   []string
	judgeSchedule []string
	fixedSQLModel string
	fixedJModel   string

	emitter stagelog.Emitter

	history []Iteration

	// metrics and tracer are optional ambient instrumentation; both are
	// safe zero values (Controller works with neither set). Wire them with
	// SetMetrics/SetTracer before calling Run.
	metrics *metrics.Metrics
	tracer  tracing.Tracer
	runID   string
}

// SetMetrics attaches Prometheus instrumentation. m may be nil to disable.
func (c *Controller) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// SetTracer attaches OpenTelemetry span instrumentation, labeling every
// span and metric sample with runID (e.g. the sanitized run label).
func (c *Controller) SetTracer(t tracing.Tracer, runID string) {
	c.tracer = t
	c.runID = runID
}

func (c *Controller) recordIteration(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordIteration(c.runID, outcome)
	}
}

func (c *Controller) recordJudgeScore(decision string, score float64) {
	if c.metrics != nil {
		c.metrics.RecordJudgeScore(c.runID, decision, score)
	}
}

func (c *Controller) recordSQLWriterFailure() {
	if c.metrics != nil {
		c.metrics.RecordSQLWriterFailure(c.runID)
	}
}

// New builds a Controller.
func New(
	cfg Config,
	sp schema.SystemPrompt,
	sqlFactory, judgeFactory ProviderFactory,
	sqlSchedule, judgeSchedule []string,
	fixedSQLModel, fixedJModel string,
	emitter stagelog.Emitter,
) *Controller {
	if emitter == nil {
		emitter = stagelog.NullEmitter{}
	}
	return &Controller{
		cfg:           cfg,
		sp:            sp,
		sqlFactory:    sqlFactory,
		judgeFactory:  judgeFactory,
		sqlSchedule:   sqlSchedule,
		judgeSchedule: judgeSchedule,
		fixedSQLModel: fixedSQLModel,
		fixedJModel:   fixedJModel,
		emitter:       emitter,
		// tracing.New(nil) resolves to the global no-op provider until
		// SetTracer is called with a real one, so StartStage is always
		// safe to call unconditionally in Run.
		tracer: tracing.New(nil),
	}
}

// Executor is the narrow SQL-execution contract the controller depends on;
// internal/sqlexec.Run satisfies it directly (modulo currying db and
// timeout, which main.go does via a closure).
type Executor func(ctx context.Context, query string, timeout time.Duration) (sqlexec.Table, error)

// Result is what Run returns on success.
type Result struct {
	Table      sqlexec.Table
	Iterations []Iteration
}

// History returns the iterations recorded so far.
func (c *Controller) History() []Iteration {
	return c.history
}

// Run drives the loop described in spec.md §4.6 to completion: it returns
// (nil, nil) on exhaustion (no result found within MaxRetries), a non-nil
// error only for fatal conditions (SP drift, prompt-writer producing no
// usable UP on the very first attempt), and otherwise the stopping
// iteration's materialized table.
func (c *Controller) Run(ctx context.Context, uq string, exec Executor) (*Result, error) {
	if c.cfg.MaxRetries <= 0 {
		return nil, nil
	}

	var up string

	for n := 1; n <= c.cfg.MaxRetries; n++ {
		stageName := fmt.Sprintf("ITER_%d", n)
		iterCtx, popIter := stagelog.Push(ctx, stageName)
		iterCtx, endSpan := c.tracer.StartStage(iterCtx, stageName)
		end := func() { endSpan(); popIter() }

		if err := c.sp.VerifyUnchanged(); err != nil {
			c.recordIteration("fatal")
			end()
			return nil, fmt.Errorf("fatal: %w", err)
		}

		nextUP, err := c.generateUP(iterCtx, uq, n)
		if err != nil {
			if up == "" {
				c.recordIteration("fatal")
				end()
				return nil, fmt.Errorf("fatal: prompt-writer exhausted with no prior UP: %w", err)
			}
			nextUP = up
		}
		up = nextUP

		sqlModel := schedule.ModelAt(c.sqlSchedule, n-1, 0, c.fixedSQLModel)
		sqlProvider, factErr := c.sqlFactory(sqlModel)
		var sqlText string
		if factErr == nil {
			sqlText, err = c.generateSQL(iterCtx, sqlProvider, uq, up)
		} else {
			err = factErr
		}
		if err != nil {
			// SQL-writer failure counts against max_retries and the loop
			// proceeds to the next attempt (spec.md §7 reconciliation —
			// see DESIGN.md).
			c.emitter.Emit(iterCtx, slog.LevelWarn, "sql-writer failed, continuing to next attempt",
				slog.Int("iteration", n), slog.String("error", err.Error()))
			c.recordSQLWriterFailure()
			end()
			continue
		}

		sqlText = promptbuild.StripUnrequestedLimit(sqlText, uq+"\n"+up, c.cfg.StripUnrequestedLimit)

		if c.cfg.DryRun {
			c.history = append(c.history, Iteration{N: n, UP: up, SQL: sqlText, SQLModel: sqlModel})
			end()
			return &Result{Iterations: c.history}, nil
		}

		table, execErr := exec(iterCtx, sqlText, c.cfg.Timeout)
		resErrText := ""
		if execErr != nil {
			resErrText = execErr.Error()
		}

		summary := summarize.Summarize(table, summarize.Budget{ContextTokens: c.cfg.JudgeContextTokens}, nil)
		if c.cfg.MinRows > 0 && table.RowCount() < c.cfg.MinRows {
			summary.Notes = append(summary.Notes, fmt.Sprintf(
				"row_count=%d is below the requested --min-rows=%d; this is advisory only, do not treat it as a failure",
				table.RowCount(), c.cfg.MinRows,
			))
		}
		resRender := summary.Render()

		j, judgeModel, judgeRaw := c.callJudge(iterCtx, uq, up, sqlText, resRender, resErrText, n)

		it := Iteration{
			N:           n,
			UP:          up,
			SQL:         sqlText,
			SQLModel:    sqlModel,
			ResRowCount: table.RowCount(),
			ResColumns:  table.Columns,
			ResRender:   resRender,
			ResError:    resErrText,
			JudgeText:   judgeRaw,
			JudgeModel:  judgeModel,
		}
		if j != nil {
			score := j.Score
			dec := j.Decision
			it.JudgeScore = &score
			it.JudgeDecision = &dec
		}

		c.history = append(c.history, it)

		if c.cfg.SaveIntermediate {
			if err := c.writeIntermediateCSV(n, table); err != nil {
				c.emitter.Emit(iterCtx, slog.LevelWarn, "failed to write intermediate CSV", slog.Int("iteration", n), slog.String("error", err.Error()))
			}
		}

		if j != nil {
			decisionStr := "NO"
			if j.Decision == judge.Yes {
				decisionStr = "YES"
			}
			c.recordJudgeScore(decisionStr, j.Score)
		}

		if judge.ShouldStop(j, c.cfg.JudgeScoreThreshold) {
			c.recordIteration("stopped")
			tracing.RecordIterationOutcome(iterCtx, "stopped", scoreOf(j))
			end()
			return &Result{Table: table, Iterations: c.history}, nil
		}

		end()
	}

	c.recordIteration("exhausted")
	return nil, nil
}

func scoreOf(j *judge.Judgement) float64 {
	if j == nil {
		return 0
	}
	return j.Score
}
