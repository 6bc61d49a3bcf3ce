// Package sqlexec runs a single read-only SELECT against the ChEMBL SQLite
// file with a wall-clock timeout.
//
// modernc.org/sqlite (the pure-Go driver this project uses, carried from
// the teacher's store package) does not expose sqlite3_progress_handler
// through database/sql, so the timeout here is enforced via a context
// deadline plus row-step polling rather than a VM-instruction-count
// callback — see DESIGN.md for the full rationale.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Table is the materialized result: row count, column names, and rows,
// kept in full locally (never truncated) — the summarizer owns any
// presentation-layer truncation for the judge.
type Table struct {
	Columns []string
	Rows    [][]string
}

func (t Table) RowCount() int { return len(t.Rows) }

// Open opens dbPath as a read-only SQLite connection, matching the
// teacher's PRAGMA-configuration idiom (busy_timeout, a single connection)
// but with no write-path tables: this system never mutates the database.
func Open(dbPath string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)&_pragma=query_only(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Run executes a single SELECT with a wall-clock timeout. On timeout it
// returns the exact message "Query timed out after Ns" as the error text,
// matching spec.md §4.5. Other failures surface the driver's error string.
func Run(ctx context.Context, db *sql.DB, query string, timeout time.Duration) (Table, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Table{}, fmt.Errorf("Query timed out after %ds", int(timeout.Seconds()))
		}
		return Table{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Table{}, err
	}

	table := Table{Columns: cols}

	const pollEvery = 500 // row-granularity stand-in for the ~10000 VM-step callback
	start := time.Now()
	n := 0
	for rows.Next() {
		n++
		if n%pollEvery == 0 && time.Since(start) > timeout {
			rows.Close()
			return Table{}, fmt.Errorf("Query timed out after %ds", int(timeout.Seconds()))
		}
		if ctx.Err() == context.DeadlineExceeded {
			rows.Close()
			return Table{}, fmt.Errorf("Query timed out after %ds", int(timeout.Seconds()))
		}

		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Table{}, err
		}
		row := make([]string, len(cols))
		for i, v := range raw {
			row[i] = formatCell(v)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Table{}, fmt.Errorf("Query timed out after %ds", int(timeout.Seconds()))
		}
		return Table{}, err
	}

	return table, nil
}

func formatCell(v any) string {
	if v == nil {
		return ""
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
