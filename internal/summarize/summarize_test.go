package summarize

import (
	"testing"

	"github.com/chembl-text2sql/text2sql/internal/sqlexec"
)

func makeTable(n int, columns []string, cellFn func(i int) []string) sqlexec.Table {
	t := sqlexec.Table{Columns: columns}
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, cellFn(i))
	}
	return t
}

func TestSampleLabelingExactness(t *testing.T) {
	n := 50
	table := makeTable(n, []string{"id"}, func(i int) []string { return []string{string(rune('a' + i%26))} })

	summary := Summarize(table, Budget{}, nil)
	for _, row := range summary.Samples {
		want := classify(row.Index, n)
		if row.Label != want {
			t.Errorf("index %d labeled %s, want %s", row.Index, row.Label, want)
		}
	}
}

func TestEmptyResultDefaultsToSample(t *testing.T) {
	table := sqlexec.Table{Columns: []string{"id"}}
	summary := Summarize(table, Budget{ContextTokens: 200000}, nil)
	if summary.Mode != ModeSample {
		t.Errorf("mode = %s, want sample for empty result", summary.Mode)
	}
	if summary.RowCount != 0 {
		t.Errorf("row count = %d, want 0", summary.RowCount)
	}
	if len(summary.Samples) != 0 {
		t.Errorf("expected no samples for empty table, got %d", len(summary.Samples))
	}
}

func TestFullModeWhenBudgetGenerous(t *testing.T) {
	table := makeTable(10, []string{"id"}, func(i int) []string { return []string{"x"} })
	summary := Summarize(table, Budget{ContextTokens: 1000000, ScaffoldTokens: 100}, nil)
	if summary.Mode != ModeFull {
		t.Errorf("mode = %s, want full", summary.Mode)
	}
}

func TestSampleModeWhenBudgetTight(t *testing.T) {
	table := makeTable(5000, []string{"id", "val"}, func(i int) []string { return []string{"x", "long value here padding out the row quite a bit"} })
	summary := Summarize(table, Budget{ContextTokens: 8000, ScaffoldTokens: 500}, nil)
	if summary.Mode != ModeSample {
		t.Errorf("mode = %s, want sample under tight budget", summary.Mode)
	}
	if len(summary.Samples) == 0 {
		t.Error("expected non-empty sample")
	}
}

func TestStratifiedCoverageEveryGroupGetsARow(t *testing.T) {
	classes := []string{"kinase", "gpcr", "protease", "ion_channel"}
	table := makeTable(400, []string{"publication_year", "target_class"}, func(i int) []string {
		return []string{"2020", classes[i%len(classes)]}
	})
	summary := Summarize(table, Budget{}, nil)
	if !summary.Stratified {
		t.Fatal("expected stratified sampling for publication_year/target_class columns")
	}

	seen := map[string]bool{}
	for _, row := range summary.Samples {
		seen[row.Cells[1]] = true
	}
	for _, c := range classes {
		if !seen[c] {
			t.Errorf("stratum %q never sampled", c)
		}
	}
}

func TestSampleSizeBounds(t *testing.T) {
	table := makeTable(5000, []string{"id"}, func(i int) []string { return []string{"x"} })
	summary := Summarize(table, Budget{}, nil)
	if len(summary.Samples) < 1 || len(summary.Samples) > 1000 {
		t.Errorf("sample size %d outside [1,1000]", len(summary.Samples))
	}
}

func TestSmallTableUsesHeadMiddleTailSplit(t *testing.T) {
	table := makeTable(7, []string{"id"}, func(i int) []string { return []string{"x"} })
	summary := buildSample(table, 0)
	for _, row := range summary.Samples {
		want := classify(row.Index, 7)
		if row.Label != want {
			t.Errorf("index %d labeled %s want %s", row.Index, row.Label, want)
		}
	}
}
