package dbclient

import (
	"context"

	"github.com/timewave/sql-runner/internal/record"
)

// Result is what the database reports for one executed statement: zero or
// more recordsets for reads, and per-statement affected-row counts for
// writes.
type Result struct {
	Recordsets   [][]record.Record
	RowsAffected []int64
}

// Connection is the database collaborator. Acquire with Connect before any
// dispatch and release with Close exactly once on every exit path; the
// implementation must safely multiplex concurrent Query calls.
type Connection interface {
	Connect(ctx context.Context) error
	Query(ctx context.Context, sqlText string) (Result, error)
	Close() error
}
