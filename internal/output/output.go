// Package output renders a final result table as json, csv, or a padded
// table to an io.Writer.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/chembl-text2sql/text2sql/internal/sqlexec"
)

// Format selects the rendering used for the final answer.
type Format string

const (
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatTable Format = "table"
)

// jsonRow renders one row as column-name to cell-value, so the JSON output
// is self-describing regardless of column order.
type jsonRow map[string]string

// Write renders table in the requested format to w.
func Write(w io.Writer, table sqlexec.Table, format Format) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, table)
	case FormatTable:
		return writeTable(w, table)
	case FormatJSON, "":
		return writeJSON(w, table)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeJSON(w io.Writer, table sqlexec.Table) error {
	rows := make([]jsonRow, 0, table.RowCount())
	for _, row := range table.Rows {
		r := make(jsonRow, len(table.Columns))
		for i, col := range table.Columns {
			if i < len(row) {
				r[col] = row[i]
			}
		}
		rows = append(rows, r)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func writeCSV(w io.Writer, table sqlexec.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return err
	}
	for _, row := range table.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTable(w io.Writer, table sqlexec.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(table.Columns, "\t"))
	for _, row := range table.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// ParseFormat normalizes a --format flag value; unrecognized or empty
// values fall back to FormatJSON (spec.md §6's default).
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV
	case "table":
		return FormatTable
	case "json", "":
		return FormatJSON
	default:
		return FormatJSON
	}
}
