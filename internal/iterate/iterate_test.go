package iterate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chembl-text2sql/text2sql/internal/judge"
	"github.com/chembl-text2sql/text2sql/internal/metrics"
	"github.com/chembl-text2sql/text2sql/internal/promptbuild"
	"github.com/chembl-text2sql/text2sql/internal/provider"
	"github.com/chembl-text2sql/text2sql/internal/schema"
	"github.com/chembl-text2sql/text2sql/internal/sqlexec"
)

// scriptedProvider returns queued text/SQL responses in order, looping on
// the last entry once exhausted.
type scriptedProvider struct {
	name      string
	texts     []string
	sqls      []string
	textCalls int
	sqlCalls  int
	failSQL   bool
}

func (p *scriptedProvider) IsAvailable() bool { return true }
func (p *scriptedProvider) Name() string      { return p.name }

func (p *scriptedProvider) GenerateSQL(ctx context.Context, question, schemaDocs string, conversation []provider.Message) (string, error) {
	if p.failSQL {
		return "", errors.New("simulated sql-writer failure")
	}
	i := p.sqlCalls
	if i >= len(p.sqls) {
		i = len(p.sqls) - 1
	}
	p.sqlCalls++
	return p.sqls[i], nil
}

func (p *scriptedProvider) GenerateText(ctx context.Context, messages []provider.Message, temperature float64, maxTokens int) (string, error) {
	i := p.textCalls
	if i >= len(p.texts) {
		i = len(p.texts) - 1
	}
	p.textCalls++
	return p.texts[i], nil
}

func testSP() schema.SystemPrompt {
	return schema.BuildSystemPrompt("## molecule\n| column | type |\n|---|---|\n| id | int |\n", "")
}

func alwaysExec(table sqlexec.Table, err error) Executor {
	return func(ctx context.Context, query string, timeout time.Duration) (sqlexec.Table, error) {
		return table, err
	}
}

func TestRunStopsWhenJudgeSaysYES(t *testing.T) {
	sqlProv := &scriptedProvider{name: "sql", sqls: []string{"SELECT 1"}}
	judgeProv := &scriptedProvider{name: "judge", texts: []string{
		"up draft 1",
		`{"analysis":"good","score":0.95,"decision":"YES"}`,
	}}

	c := New(
		Config{MaxRetries: 3, JudgeScoreThreshold: 0.9, JudgeCallRetries: 1},
		testSP(),
		func(string) (provider.Provider, error) { return sqlProv, nil },
		func(string) (provider.Provider, error) { return judgeProv, nil },
		nil, nil, "sql-model", "judge-model",
		nil,
	)

	table := sqlexec.Table{Columns: []string{"id"}, Rows: [][]string{{"1"}}}
	res, err := c.Run(context.Background(), "how many molecules?", alwaysExec(table, nil))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if len(res.Iterations) != 1 {
		t.Fatalf("expected 1 iteration, got %d", len(res.Iterations))
	}
	if res.Iterations[0].JudgeDecision == nil || *res.Iterations[0].JudgeDecision != judge.Yes {
		t.Errorf("expected YES decision, got %+v", res.Iterations[0].JudgeDecision)
	}
}

func TestRunRecordsMetricsAndTracingWithoutAffectingResult(t *testing.T) {
	sqlProv := &scriptedProvider{name: "sql", sqls: []string{"SELECT 1"}}
	judgeProv := &scriptedProvider{name: "judge", texts: []string{
		"up draft 1",
		`{"analysis":"good","score":0.95,"decision":"YES"}`,
	}}

	c := New(
		Config{MaxRetries: 3, JudgeScoreThreshold: 0.9, JudgeCallRetries: 1},
		testSP(),
		func(string) (provider.Provider, error) { return sqlProv, nil },
		func(string) (provider.Provider, error) { return judgeProv, nil },
		nil, nil, "sql-model", "judge-model",
		nil,
	)
	c.SetMetrics(metrics.New(prometheus.NewRegistry()))

	table := sqlexec.Table{Columns: []string{"id"}, Rows: [][]string{{"1"}}}
	res, err := c.Run(context.Background(), "how many molecules?", alwaysExec(table, nil))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res == nil || len(res.Iterations) != 1 {
		t.Fatalf("expected 1 iteration, got %+v", res)
	}
}

func TestRunExhaustsRetriesWhenJudgeNeverSatisfied(t *testing.T) {
	sqlProv := &scriptedProvider{name: "sql", sqls: []string{"SELECT 1"}}
	judgeProv := &scriptedProvider{name: "judge", texts: []string{
		`{"analysis":"meh","score":0.1,"decision":"NO"}`,
	}}

	c := New(
		Config{MaxRetries: 2, JudgeScoreThreshold: 0.9, JudgeCallRetries: 1},
		testSP(),
		func(string) (provider.Provider, error) { return sqlProv, nil },
		func(string) (provider.Provider, error) { return judgeProv, nil },
		nil, nil, "sql-model", "judge-model",
		nil,
	)

	table := sqlexec.Table{Columns: []string{"id"}, Rows: [][]string{{"1"}}}
	res, err := c.Run(context.Background(), "how many molecules?", alwaysExec(table, nil))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil result on exhaustion, got %+v", res)
	}
	if len(c.History()) != 2 {
		t.Fatalf("expected 2 recorded iterations, got %d", len(c.History()))
	}
}

func TestRunSQLWriterFailureContinuesToNextAttempt(t *testing.T) {
	sqlProv := &scriptedProvider{name: "sql", failSQL: true}
	judgeProv := &scriptedProvider{name: "judge", texts: []string{"up draft"}}

	c := New(
		Config{MaxRetries: 2, JudgeScoreThreshold: 0.9, JudgeCallRetries: 1},
		testSP(),
		func(string) (provider.Provider, error) { return sqlProv, nil },
		func(string) (provider.Provider, error) { return judgeProv, nil },
		nil, nil, "sql-model", "judge-model",
		nil,
	)

	res, err := c.Run(context.Background(), "how many molecules?", alwaysExec(sqlexec.Table{}, nil))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res != nil {
		t.Fatal("expected nil result: sql-writer never succeeds")
	}
	if len(c.History()) != 0 {
		t.Fatalf("a failed sql-writer attempt must not append history, got %d entries", len(c.History()))
	}
}

func TestRunDryRunStopsAfterFirstSQL(t *testing.T) {
	sqlProv := &scriptedProvider{name: "sql", sqls: []string{"SELECT 1"}}
	judgeProv := &scriptedProvider{name: "judge", texts: []string{"up draft"}}

	c := New(
		Config{MaxRetries: 3, JudgeScoreThreshold: 0.9, JudgeCallRetries: 1, DryRun: true},
		testSP(),
		func(string) (provider.Provider, error) { return sqlProv, nil },
		func(string) (provider.Provider, error) { return judgeProv, nil },
		nil, nil, "sql-model", "judge-model",
		nil,
	)

	res, err := c.Run(context.Background(), "how many molecules?", alwaysExec(sqlexec.Table{}, nil))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res == nil || len(res.Iterations) != 1 {
		t.Fatalf("expected exactly one dry-run iteration, got %+v", res)
	}
	if sqlProv.sqlCalls != 1 {
		t.Errorf("dry-run should not loop past the first SQL draft, sqlCalls=%d", sqlProv.sqlCalls)
	}
}

func TestRunFatalOnSystemPromptDrift(t *testing.T) {
	sp := testSP()
	sp.Text += " tampered"

	sqlProv := &scriptedProvider{name: "sql", sqls: []string{"SELECT 1"}}
	judgeProv := &scriptedProvider{name: "judge", texts: []string{"up draft"}}

	c := New(
		Config{MaxRetries: 3, JudgeScoreThreshold: 0.9, JudgeCallRetries: 1},
		sp,
		func(string) (provider.Provider, error) { return sqlProv, nil },
		func(string) (provider.Provider, error) { return judgeProv, nil },
		nil, nil, "sql-model", "judge-model",
		nil,
	)

	_, err := c.Run(context.Background(), "how many molecules?", alwaysExec(sqlexec.Table{}, nil))
	if err == nil {
		t.Fatal("expected a fatal error on SP drift")
	}
}

func TestHistoryWindowingFeedsPromptbuild(t *testing.T) {
	c := &Controller{cfg: Config{HistoryWindow: 2}}
	c.history = []Iteration{
		{N: 1, UP: "u1"}, {N: 2, UP: "u2"}, {N: 3, UP: "u3"},
	}
	views := c.historyViews()
	if len(views) != 2 {
		t.Fatalf("expected window of 2, got %d", len(views))
	}
	if views[0].N != 2 || views[1].N != 3 {
		t.Errorf("expected iterations 2,3, got %+v", views)
	}
	rendered := promptbuild.RenderHistory(views)
	if rendered == "<HISTORY/>" {
		t.Error("non-empty history must not render as empty")
	}
}
