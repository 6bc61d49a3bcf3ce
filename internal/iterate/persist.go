package iterate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chembl-text2sql/text2sql/internal/sqlexec"
)

// runPrefix namespaces an artifact filename under the configured run label,
// matching spec.md §8 scenario 6's sanitized-run-label-in-filenames rule.
func (c *Controller) runPrefix() string {
	if c.cfg.RunLabel == "" {
		return "run"
	}
	return c.cfg.RunLabel
}

// writeIntermediateCSV persists iteration n's result table to
// IntermediateDir, one file per iteration, when SaveIntermediate is set.
func (c *Controller) writeIntermediateCSV(n int, table sqlexec.Table) error {
	dir := c.cfg.IntermediateDir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_iter%d.csv", c.runPrefix(), n))
	var sb strings.Builder
	sb.WriteString(strings.Join(table.Columns, ","))
	sb.WriteString("\n")
	for _, row := range table.Rows {
		sb.WriteString(strings.Join(row, ","))
		sb.WriteString("\n")
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// writeMalformedJudgeDump persists a judge response that failed to parse,
// under IntermediateDir/judge_malformed, for post-run debugging (spec.md
// §8 scenario 2).
func (c *Controller) writeMalformedJudgeDump(n, attempt int, raw string) error {
	dir := c.cfg.IntermediateDir
	if dir == "" {
		dir = "logs"
	}
	malformedDir := filepath.Join(dir, "judge_malformed")
	if err := os.MkdirAll(malformedDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", malformedDir, err)
	}

	path := filepath.Join(malformedDir, fmt.Sprintf("%s_iter%d_attempt%d.txt", c.runPrefix(), n, attempt))
	return os.WriteFile(path, []byte(raw), 0o644)
}
