package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // Import PostgreSQL driver

	"github.com/timewave/sql-runner/internal/logger"
	"github.com/timewave/sql-runner/internal/record"
)

// PostgresConnection implements Connection over database/sql with the pq
// driver. The pool handles multiplexing of concurrently dispatched
// statements.
type PostgresConnection struct {
	dsn    string
	db     *sql.DB
	logger *logger.Logger
}

func NewPostgres(dsn string) *PostgresConnection {
	return &PostgresConnection{
		dsn:    dsn,
		logger: logger.NewLogger("Postgres"),
	}
}

func (c *PostgresConnection) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", c.dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping Postgres: %w", err)
	}

	c.db = db
	c.logger.Debug("Connected to pgdb")
	return nil
}

// Query executes one statement. Reads open a cursor and scan every row into
// an ordered record; writes report the affected-row count.
func (c *PostgresConnection) Query(ctx context.Context, sqlText string) (Result, error) {
	if c.db == nil {
		return Result{}, fmt.Errorf("query before Connect")
	}
	if isReadQuery(sqlText) {
		return c.queryRead(ctx, sqlText)
	}
	return c.queryWrite(ctx, sqlText)
}

func (c *PostgresConnection) queryWrite(ctx context.Context, sqlText string) (Result, error) {
	res, err := c.db.ExecContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("exec: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Result{}, fmt.Errorf("rows affected: %w", err)
	}
	return Result{RowsAffected: []int64{affected}}, nil
}

func (c *PostgresConnection) queryRead(ctx context.Context, sqlText string) (Result, error) {
	rows, err := c.db.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("columns: %w", err)
	}

	var records []record.Record
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		rec := record.New()
		for i, column := range columns {
			rec.Set(column, formatValue(values[i]))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate: %w", err)
	}

	return Result{Recordsets: [][]record.Record{records}}, nil
}

func (c *PostgresConnection) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// isReadQuery detects if a statement is a read (SELECT, WITH, SHOW, EXPLAIN).
func isReadQuery(sqlText string) bool {
	q := strings.ToUpper(strings.TrimSpace(sqlText))
	for _, prefix := range []string{"SELECT", "WITH", "SHOW", "EXPLAIN"} {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}

// formatValue converts a scanned database value to a record-friendly one.
func formatValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}
