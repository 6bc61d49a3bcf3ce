// Package summarize decides whether a query result ships to the judge in
// full or as a stratified/uniform sample, under a token budget derived from
// the judge back-end's context window.
package summarize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chembl-text2sql/text2sql/internal/sqlexec"
)

const charsPerToken = 4.0

// Mode is the res_mode field of the summary (spec.md §3).
type Mode string

const (
	ModeFull   Mode = "full"
	ModeSample Mode = "sample"
)

// Label positions a sample row within the full table.
type Label string

const (
	LabelHead   Label = "head"
	LabelMiddle Label = "middle"
	LabelTail   Label = "tail"
)

// SampleRow is one row carried in the summary, with its original index and
// positional label.
type SampleRow struct {
	Index int
	Label Label
	Cells []string
}

// Summary is the judge-facing rendering of a Table (spec.md §3's RES_n
// "summary" half).
type Summary struct {
	Mode       Mode
	RowCount   int
	Columns    []string
	FullCSV    string // populated when Mode == ModeFull
	Samples    []SampleRow
	Stratified bool
	Notes      []string
}

// Budget carries the token-budget inputs spec.md §4.6 describes.
type Budget struct {
	ContextTokens   int // 0 means "judge has no advertised context length"
	ScaffoldTokens  int // tokens consumed by SP + task + UQ + history + UP + SQL
}

// classify labels a row index within a table of size n: head iff i<3,
// tail iff i>=n-3, else middle (spec.md §8 "Sample labeling" property).
func classify(i, n int) Label {
	if i < 3 {
		return LabelHead
	}
	if i >= n-3 {
		return LabelTail
	}
	return LabelMiddle
}

func estimateTokens(s string) int {
	return int(float64(len(s))/charsPerToken) + 1
}

func tableToCSVEstimate(t sqlexec.Table) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(t.Columns, ","))
	sb.WriteString("\n")
	for _, row := range t.Rows {
		sb.WriteString(strings.Join(row, ","))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Summarize decides full vs sample and builds the Summary.
//
// If the judge back-end advertises a context length (budget.ContextTokens >
// 0), the available budget is 0.9*context - scaffold; the full CSV is used
// if it fits, else a sample is built within 0.6 of the remaining budget.
// When no context length is advertised, mode defaults to sample (a
// conservative choice matching the empty-result boundary case in spec.md
// §8: "row_count=0 ... res_mode defaults to sample").
func Summarize(t sqlexec.Table, budget Budget, stratifyColumns []string) Summary {
	n := t.RowCount()

	if budget.ContextTokens > 0 {
		available := int(0.9*float64(budget.ContextTokens)) - budget.ScaffoldTokens
		csv := tableToCSVEstimate(t)
		if available > 0 && estimateTokens(csv) <= available && n > 0 {
			return Summary{
				Mode:     ModeFull,
				RowCount: n,
				Columns:  t.Columns,
				FullCSV:  csv,
			}
		}
		return buildSample(t, available)
	}

	return buildSample(t, 0)
}

func buildSample(t sqlexec.Table, availableTokens int) Summary {
	n := t.RowCount()
	s := Summary{Mode: ModeSample, RowCount: n, Columns: t.Columns}

	if n == 0 {
		s.Notes = append(s.Notes, "result is empty; no samples to show")
		return s
	}

	stratIdx := detectStratificationColumns(t.Columns)
	if len(stratIdx) > 0 {
		s.Stratified = true
		s.Samples = stratifiedSample(t, stratIdx, availableTokens)
	} else {
		s.Samples = uniformSample(t, availableTokens)
	}

	s.Notes = append(s.Notes,
		"res_mode=sample: do not penalize the query for apparent truncation or missing strata; this is a partial view of a larger result.",
	)
	return s
}

// sampleSize picks a size in [200,1000], bounded by row count and by the
// token budget (0.6 of available tokens divided by an estimated per-row
// token cost), per spec.md §4.6.
func sampleSize(n, availableTokens, cellWidth int) int {
	size := 1000
	if n < size {
		size = n
	}
	if availableTokens > 0 {
		perRowTokens := estimateTokens(strings.Repeat("x", cellWidth)) * 4 // rough column-count-agnostic estimate
		if perRowTokens > 0 {
			maxByBudget := int(0.6*float64(availableTokens)) / perRowTokens
			if maxByBudget < size {
				size = maxByBudget
			}
		}
	}
	if size > n {
		size = n
	}
	if size < 0 {
		size = 0
	}
	return size
}

func uniformSample(t sqlexec.Table, availableTokens int) []SampleRow {
	n := t.RowCount()
	cellWidth := 60
	var size int
	for _, width := range []int{60, 50, 40, 30} {
		cellWidth = width
		size = sampleSize(n, availableTokens, width)
		if size >= 200 || size >= n {
			break
		}
	}

	if size <= 9 {
		return headMiddleTailSplit(t, size, cellWidth)
	}

	indices := evenlySpacedIndices(n, size)
	rows := make([]SampleRow, 0, len(indices))
	for _, i := range indices {
		rows = append(rows, SampleRow{Index: i, Label: classify(i, n), Cells: truncateRow(t.Rows[i], cellWidth)})
	}
	return rows
}

// headMiddleTailSplit builds a small sample (size<=9) from exact head,
// middle, and tail sections.
func headMiddleTailSplit(t sqlexec.Table, size, cellWidth int) []SampleRow {
	n := t.RowCount()
	if size >= n {
		rows := make([]SampleRow, n)
		for i := 0; i < n; i++ {
			rows[i] = SampleRow{Index: i, Label: classify(i, n), Cells: truncateRow(t.Rows[i], cellWidth)}
		}
		return rows
	}

	third := size / 3
	rem := size - third*2
	headCount, midCount, tailCount := third, third, rem
	if size < 3 {
		headCount, midCount, tailCount = size, 0, 0
	}

	var indices []int
	for i := 0; i < headCount && i < n; i++ {
		indices = append(indices, i)
	}
	midStart := n/2 - midCount/2
	for i := 0; i < midCount; i++ {
		idx := midStart + i
		if idx >= 0 && idx < n {
			indices = append(indices, idx)
		}
	}
	for i := 0; i < tailCount; i++ {
		idx := n - tailCount + i
		if idx >= 0 && idx < n {
			indices = append(indices, idx)
		}
	}

	indices = dedupSorted(indices)
	rows := make([]SampleRow, 0, len(indices))
	for _, i := range indices {
		rows = append(rows, SampleRow{Index: i, Label: classify(i, n), Cells: truncateRow(t.Rows[i], cellWidth)})
	}
	return rows
}

func evenlySpacedIndices(n, size int) []int {
	if size <= 0 {
		return nil
	}
	if size >= n {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	indices := make([]int, 0, size)
	step := float64(n-1) / float64(size-1)
	for i := 0; i < size; i++ {
		idx := int(float64(i) * step)
		if idx >= n {
			idx = n - 1
		}
		indices = append(indices, idx)
	}
	return dedupSorted(indices)
}

func dedupSorted(indices []int) []int {
	sort.Ints(indices)
	out := indices[:0]
	var last int = -1
	for _, i := range indices {
		if i != last {
			out = append(out, i)
			last = i
		}
	}
	return out
}

var stratifiablePairs = [][2]string{
	{"publication_year", "target_class"},
}

// detectStratificationColumns prefers the documented {publication_year,
// target_class} pair by name match; falls back to any single column whose
// name matches one of those two.
func detectStratificationColumns(columns []string) []int {
	index := map[string]int{}
	for i, c := range columns {
		index[strings.ToLower(c)] = i
	}

	for _, pair := range stratifiablePairs {
		var idx []int
		for _, name := range pair {
			if i, ok := index[name]; ok {
				idx = append(idx, i)
			}
		}
		if len(idx) > 0 {
			return idx
		}
	}
	return nil
}

const maxStrataGroups = 20

func stratifiedSample(t sqlexec.Table, strataCols []int, availableTokens int) []SampleRow {
	n := t.RowCount()
	cellWidth := 60
	var size int
	for _, width := range []int{60, 50, 40, 30} {
		cellWidth = width
		size = sampleSize(n, availableTokens, width)
		if size >= 200 || size >= n {
			break
		}
	}
	if size <= 0 {
		return nil
	}

	groups := map[string][]int{}
	var groupKeys []string
	for i, row := range t.Rows {
		key := strataKey(row, strataCols)
		if _, ok := groups[key]; !ok {
			groupKeys = append(groupKeys, key)
		}
		groups[key] = append(groups[key], i)
	}
	sort.Strings(groupKeys)

	if len(groupKeys) > maxStrataGroups {
		groupKeys = evenlySpacedStrings(groupKeys, maxStrataGroups)
	}

	allocation := allocateProportional(groups, groupKeys, size)

	var indices []int
	for _, key := range groupKeys {
		members := groups[key]
		count := allocation[key]
		if count > len(members) {
			count = len(members)
		}
		picked := evenlySpacedIndices(len(members), count)
		for _, p := range picked {
			indices = append(indices, members[p])
		}
	}

	indices = dedupSorted(indices)
	rows := make([]SampleRow, 0, len(indices))
	for _, i := range indices {
		rows = append(rows, SampleRow{Index: i, Label: classify(i, n), Cells: truncateRow(t.Rows[i], cellWidth)})
	}
	return rows
}

func strataKey(row []string, cols []int) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		if c < len(row) {
			parts[i] = row[c]
		}
	}
	return strings.Join(parts, "\x1f")
}

func evenlySpacedStrings(keys []string, size int) []string {
	idx := evenlySpacedIndices(len(keys), size)
	out := make([]string, len(idx))
	for i, k := range idx {
		out[i] = keys[k]
	}
	return out
}

// allocateProportional splits size rows across groups proportionally to
// group size, guaranteeing at least one row per group, with a
// sorted-by-size diff-correction pass so the total allocated equals size
// whenever the per-group bounds (at least one, at most the group's size)
// allow it; with more groups than size, every group still gets one row.
func allocateProportional(groups map[string][]int, keys []string, size int) map[string]int {
	total := 0
	for _, k := range keys {
		total += len(groups[k])
	}
	if total == 0 {
		return map[string]int{}
	}

	alloc := make(map[string]int, len(keys))
	allocated := 0
	for _, k := range keys {
		share := int(float64(len(groups[k])) / float64(total) * float64(size))
		if share < 1 {
			share = 1
		}
		if share > len(groups[k]) {
			share = len(groups[k])
		}
		alloc[k] = share
		allocated += share
	}

	diff := size - allocated
	sortedKeys := append([]string{}, keys...)
	sort.Slice(sortedKeys, func(i, j int) bool { return len(groups[sortedKeys[i]]) > len(groups[sortedKeys[j]]) })

	for diff != 0 && len(sortedKeys) > 0 {
		progressed := false
		for _, k := range sortedKeys {
			if diff == 0 {
				break
			}
			if diff > 0 && alloc[k] < len(groups[k]) {
				alloc[k]++
				diff--
				progressed = true
			} else if diff < 0 && alloc[k] > 1 {
				alloc[k]--
				diff++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	return alloc
}

func truncateRow(row []string, width int) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		if len(cell) > width {
			out[i] = cell[:width] + "…"
		} else {
			out[i] = cell
		}
	}
	return out
}

// Render produces the judge-facing text block for RES_n.
func (s Summary) Render() string {
	var sb strings.Builder
	sb.WriteString("res_mode=" + string(s.Mode) + "\n")
	sb.WriteString("row_count=" + strconv.Itoa(s.RowCount) + "\n")
	sb.WriteString("columns=" + strings.Join(s.Columns, ",") + "\n")

	if s.Mode == ModeFull {
		sb.WriteString(s.FullCSV)
	} else {
		if s.Stratified {
			sb.WriteString("stratified=true\n")
		}
		for _, row := range s.Samples {
			sb.WriteString(fmt.Sprintf("%s (row %d): %s\n", row.Label, row.Index, strings.Join(row.Cells, ",")))
		}
	}

	for _, note := range s.Notes {
		sb.WriteString("NOTE: " + note + "\n")
	}
	return sb.String()
}
