// Package repositories implements the schedule domain's persistence
// contracts on PostgreSQL.
package repositories

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// queryExecutor abstracts sql.DB and sql.Tx so repositories run unchanged
// inside or outside a transaction.
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// placeholder renders one parenthesized VALUES group of n positional
// parameters starting after offset, e.g. placeholder(6, 3) == "($7, $8, $9)".
func placeholder(offset, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = "$" + strconv.Itoa(offset+i+1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
