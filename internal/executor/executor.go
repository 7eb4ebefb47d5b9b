package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/timewave/sql-runner/internal/dbclient"
	"github.com/timewave/sql-runner/internal/logger"
	"github.com/timewave/sql-runner/internal/record"
	"github.com/timewave/sql-runner/internal/sqlgen"
)

// QueryFunc executes one SQL statement against the shared connection.
type QueryFunc func(ctx context.Context, sqlText string) (dbclient.Result, error)

// Run dispatches every statement of every group concurrently and waits for
// all of them, even when one fails. Results come back in statement order
// (groups in the order given, statements in build order within a group);
// completion order is irrelevant. The first error observed in statement
// order is returned after the wait, alongside the results gathered so far.
func Run(ctx context.Context, groups [][]sqlgen.Statement, query QueryFunc) ([]dbclient.Result, error) {
	log := logger.NewLogger("Executor")

	var statements []sqlgen.Statement
	for _, group := range groups {
		statements = append(statements, group...)
	}
	log.Debug("Dispatching %d statements across %d groups", len(statements), len(groups))

	results := make([]dbclient.Result, len(statements))
	errs := make([]error, len(statements))

	wg := sync.WaitGroup{}
	for i, stmt := range statements {
		wg.Add(1)
		go func(i int, stmt sqlgen.Statement) {
			defer wg.Done()
			res, err := query(ctx, stmt.SQL)
			if err != nil {
				errs[i] = fmt.Errorf("statement for table %s chunk %d: %w", stmt.Table, stmt.Chunk, err)
				return
			}
			results[i] = res
		}(i, stmt)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// SumRowsAffected reduces every affected-row count of every result into a
// single total.
func SumRowsAffected(results []dbclient.Result) int64 {
	var total int64
	for _, res := range results {
		for _, n := range res.RowsAffected {
			total += n
		}
	}
	return total
}

// FlattenRecordsets concatenates every recordset of every result into one
// flat row list, preserving result and recordset order.
func FlattenRecordsets(results []dbclient.Result) []record.Record {
	var rows []record.Record
	for _, res := range results {
		for _, recordset := range res.Recordsets {
			rows = append(rows, recordset...)
		}
	}
	return rows
}
