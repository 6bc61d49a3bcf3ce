// Package schema generates the markdown schema document from the ChEMBL
// SQLite file and assembles the immutable System Prompt (SP) around it.
package schema

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Column describes one table column as reported by PRAGMA table_info.
type Column struct {
	Name     string
	Type     string
	NotNull  bool
	IsPK     bool
}

// Table holds everything needed to render one table's markdown section.
type Table struct {
	Name    string
	Columns []Column
	Samples [][]string
}

// Options controls schema-doc generation.
type Options struct {
	SampleRows int // rows sampled per table, default 3
	MaxCellLen int // cell truncation width, default 80
}

func (o Options) withDefaults() Options {
	if o.SampleRows <= 0 {
		o.SampleRows = 3
	}
	if o.MaxCellLen <= 0 {
		o.MaxCellLen = 80
	}
	return o
}

// internalTablePrefixes lists SQLite's own bookkeeping tables, which are
// never surfaced in the schema document.
var internalTablePrefixes = []string{"sqlite_"}

// GenerateDocs enumerates every non-internal table in db, loads its column
// metadata, samples up to opts.SampleRows rows, and renders the whole thing
// as a markdown document.
func GenerateDocs(db *sql.DB, opts Options) (string, error) {
	opts = opts.withDefaults()

	names, err := tableNames(db)
	if err != nil {
		return "", fmt.Errorf("listing tables: %w", err)
	}

	var tables []Table
	for _, name := range names {
		cols, err := tableColumns(db, name)
		if err != nil {
			return "", fmt.Errorf("columns for %s: %w", name, err)
		}
		samples, err := sampleRows(db, name, opts.SampleRows, opts.MaxCellLen)
		if err != nil {
			return "", fmt.Errorf("sampling %s: %w", name, err)
		}
		tables = append(tables, Table{Name: name, Columns: cols, Samples: samples})
	}

	return render(tables), nil
}

func tableNames(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if isInternal(name) {
			continue
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func isInternal(name string) bool {
	for _, prefix := range internalTablePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func tableColumns(db *sql.DB, table string) ([]Column, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, Column{Name: name, Type: ctype, NotNull: notnull != 0, IsPK: pk != 0})
	}
	return cols, rows.Err()
}

func sampleRows(db *sql.DB, table string, limit, maxCellLen int) ([][]string, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT * FROM %q LIMIT ?", table), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]string
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range raw {
			row[i] = truncate(formatCell(v), maxCellLen)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func render(tables []Table) string {
	var sb strings.Builder
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	for _, t := range tables {
		sb.WriteString("## " + t.Name + "\n\n")
		sb.WriteString("| column | type | notnull | pk |\n|---|---|---|---|\n")
		for _, c := range t.Columns {
			sb.WriteString(fmt.Sprintf("| %s | %s | %v | %v |\n", c.Name, c.Type, c.NotNull, c.IsPK))
		}
		sb.WriteString("\n")

		if len(t.Samples) > 0 {
			header := make([]string, len(t.Columns))
			for i, c := range t.Columns {
				header[i] = c.Name
			}
			sb.WriteString("| " + strings.Join(header, " | ") + " |\n")
			sb.WriteString("|" + strings.Repeat("---|", len(header)) + "\n")
			for _, row := range t.Samples {
				sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// NeedsRegeneration reports whether the schema doc at docsPath is missing or
// stale relative to dbPath's modification time.
func NeedsRegeneration(docsPath, dbPath string) bool {
	docInfo, err := os.Stat(docsPath)
	if err != nil {
		return true
	}
	dbInfo, err := os.Stat(dbPath)
	if err != nil {
		return true
	}
	return docInfo.ModTime().Before(dbInfo.ModTime())
}

// SystemPrompt is the immutable SP: schema docs plus optional hints, with a
// content hash taken at construction. Any later mismatch between Hash and a
// recomputed hash of Text is a fatal invariant violation.
type SystemPrompt struct {
	Text string
	Hash string
}

const aboutText = `You answer questions about ChEMBL, a public database of
bioactive molecules with drug-like properties, by writing a single SQL
SELECT statement against the schema below.`

// BuildSystemPrompt renders the <SP> wrapper described in spec.md §4.4 and
// hashes the result.
func BuildSystemPrompt(schemaDocs, hints string) SystemPrompt {
	var sb strings.Builder
	sb.WriteString("<SP>\n")
	sb.WriteString("<ABOUT>\n" + strings.TrimSpace(aboutText) + "\n</ABOUT>\n\n")
	sb.WriteString("<DATABASE_SCHEMA_DOCS>\n" + schemaDocs + "\n</DATABASE_SCHEMA_DOCS>\n")
	if strings.TrimSpace(hints) != "" {
		sb.WriteString("<PROMPT_HINTS>\n" + strings.TrimSpace(hints) + "\n</PROMPT_HINTS>\n")
	}
	sb.WriteString("</SP>")

	text := sb.String()
	return SystemPrompt{Text: text, Hash: hashText(text)}
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// VerifyUnchanged recomputes the hash of sp.Text and compares against
// sp.Hash, enforcing the SP-drift invariant (spec.md §4.6).
func (sp SystemPrompt) VerifyUnchanged() error {
	if hashText(sp.Text) != sp.Hash {
		return fmt.Errorf("system prompt drift detected: hash mismatch")
	}
	return nil
}
