package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/timewave/sql-runner/internal/dbclient"
	"github.com/timewave/sql-runner/internal/executor"
	"github.com/timewave/sql-runner/internal/grouping"
	"github.com/timewave/sql-runner/internal/logger"
	"github.com/timewave/sql-runner/internal/record"
	"github.com/timewave/sql-runner/internal/sqlgen"
)

// Operation selects which flow an invocation runs.
type Operation string

const (
	OpExecuteQuery Operation = "executeQuery"
	OpInsert       Operation = "insert"
	OpUpdate       Operation = "update"
	OpDelete       Operation = "delete"
)

// Error kinds, matchable with errors.Is.
var (
	// ErrConfiguration marks an unsupported operation or a missing required
	// parameter. Never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrConstruction marks a group that cannot yield valid SQL (zero
	// columns, null key value). No statement is dispatched.
	ErrConstruction = errors.New("construction error")

	// ErrExecution marks a statement the database rejected. The whole batch
	// is abandoned once the rejection surfaces; retries are the caller's
	// business.
	ErrExecution = errors.New("execution error")
)

// Config carries the per-invocation policy knobs.
type Config struct {
	// ChunkSize caps rows per generated statement; <= 0 selects
	// sqlgen.DefaultChunkSize.
	ChunkSize int

	// ContinueOnFail turns any error into a single {error: ...} output
	// record instead of a returned error.
	ContinueOnFail bool
}

// Runner owns the grouping → building → executing → aggregating pipeline for
// one invocation. No state survives across invocations.
type Runner struct {
	conn   dbclient.Connection
	cfg    Config
	logger *logger.Logger
}

func New(conn dbclient.Connection, cfg Config) *Runner {
	return &Runner{
		conn:   conn,
		cfg:    cfg,
		logger: logger.NewLogger("Runner"),
	}
}

// Run executes the selected operation over the input records and returns the
// output records: one {rowsAffected: n} record for the write operations, or
// the flattened query rows for executeQuery. The connection is closed on
// every exit path.
func (r *Runner) Run(ctx context.Context, op Operation, items []record.Record, resolve grouping.ParamResolver) ([]record.Record, error) {
	runID := uuid.NewString()
	r.logger.Info("Run %s: operation %s, %d input records", runID, op, len(items))

	if err := r.conn.Connect(ctx); err != nil {
		return r.finish(runID, nil, fmt.Errorf("%w: %v", ErrExecution, err))
	}
	defer func() {
		if err := r.conn.Close(); err != nil {
			r.logger.Error("Run %s: error closing connection: %v", runID, err)
		}
	}()

	out, err := r.dispatch(ctx, op, items, resolve)
	return r.finish(runID, out, err)
}

// finish applies the continue-on-failure policy and logs the outcome.
func (r *Runner) finish(runID string, out []record.Record, err error) ([]record.Record, error) {
	if err == nil {
		r.logger.Info("Run %s: done, %d output records", runID, len(out))
		return out, nil
	}
	if r.cfg.ContinueOnFail {
		r.logger.Warn("Run %s: continuing on failure: %v", runID, err)
		return []record.Record{record.ErrorRecord(err)}, nil
	}
	r.logger.Error("Run %s: failed: %v", runID, err)
	return nil, err
}

func (r *Runner) dispatch(ctx context.Context, op Operation, items []record.Record, resolve grouping.ParamResolver) ([]record.Record, error) {
	switch op {
	case OpExecuteQuery:
		return r.runExecuteQuery(ctx, items, resolve)
	case OpInsert:
		return r.runInsert(ctx, items, resolve)
	case OpUpdate:
		return r.runUpdate(ctx, items, resolve)
	case OpDelete:
		return r.runDelete(ctx, items, resolve)
	default:
		return nil, fmt.Errorf("%w: unsupported operation %q", ErrConfiguration, op)
	}
}

func (r *Runner) runExecuteQuery(ctx context.Context, items []record.Record, resolve grouping.ParamResolver) ([]record.Record, error) {
	statements := make([]sqlgen.Statement, 0, len(items))
	for i := range items {
		query, err := resolve("query", i)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		if query == "" {
			return nil, fmt.Errorf("%w: no query set for row %d", ErrConfiguration, i)
		}
		statements = append(statements, sqlgen.Statement{Chunk: i, SQL: query})
	}

	results, err := executor.Run(ctx, [][]sqlgen.Statement{statements}, r.conn.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return executor.FlattenRecordsets(results), nil
}

func (r *Runner) runInsert(ctx context.Context, items []record.Record, resolve grouping.ParamResolver) ([]record.Record, error) {
	groups, err := grouping.ForInsert(items, resolve)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	batches := make([][]sqlgen.Statement, 0, len(groups))
	for _, group := range groups {
		statements, err := sqlgen.BuildInserts(group, r.cfg.ChunkSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
		}
		batches = append(batches, statements)
	}
	return r.execute(ctx, batches)
}

func (r *Runner) runUpdate(ctx context.Context, items []record.Record, resolve grouping.ParamResolver) ([]record.Record, error) {
	groups, err := grouping.ForKeyed(items, resolve, "updateKey")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	batches := make([][]sqlgen.Statement, 0, len(groups))
	for _, group := range groups {
		statements, err := sqlgen.BuildUpdates(group)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
		}
		batches = append(batches, statements)
	}
	return r.execute(ctx, batches)
}

func (r *Runner) runDelete(ctx context.Context, items []record.Record, resolve grouping.ParamResolver) ([]record.Record, error) {
	groups, err := grouping.ForKeyed(items, resolve, "deleteKey")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	batches := make([][]sqlgen.Statement, 0, len(groups))
	for _, group := range groups {
		statements, err := sqlgen.BuildDeletes(group, r.cfg.ChunkSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
		}
		batches = append(batches, statements)
	}
	return r.execute(ctx, batches)
}

// execute dispatches the built statements and reduces the affected-row
// counts to the single summary record.
func (r *Runner) execute(ctx context.Context, batches [][]sqlgen.Statement) ([]record.Record, error) {
	results, err := executor.Run(ctx, batches, r.conn.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	total := executor.SumRowsAffected(results)
	return []record.Record{record.RowsAffected(total)}, nil
}
