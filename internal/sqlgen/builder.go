package sqlgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/timewave/sql-runner/internal/grouping"
	"github.com/timewave/sql-runner/internal/record"
)

// DefaultChunkSize caps the number of rows (insert) or key values (delete)
// rendered into one statement, guarding against backend statement-size
// limits.
const DefaultChunkSize = 1000

var (
	// ErrNoColumns is returned when an insert group has an empty column list.
	ErrNoColumns = errors.New("no columns to insert")

	// ErrNullKey is returned when an update/delete row has a nil or missing
	// key value. A WHERE clause built over a null key would match unintended
	// rows, so the builder refuses to emit the statement.
	ErrNullKey = errors.New("null key value")
)

// Statement is one generated SQL string, tagged with the table and chunk it
// was built from.
type Statement struct {
	Table string
	Chunk int
	SQL   string
}

// BuildInserts renders a table group as one multi-row INSERT per chunk.
// Passing chunkSize <= 0 selects DefaultChunkSize.
func BuildInserts(group *grouping.TableGroup, chunkSize int) ([]Statement, error) {
	if len(group.Columns) == 0 {
		return nil, fmt.Errorf("%w: table %s", ErrNoColumns, group.Table)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var statements []Statement
	for chunk, rows := range chunkRecords(group.Records, chunkSize) {
		tuples := make([]string, len(rows))
		for i, rec := range rows {
			tuples[i] = Tuple(rec, group.Columns)
		}
		statements = append(statements, Statement{
			Table: group.Table,
			Chunk: chunk,
			SQL: fmt.Sprintf("INSERT INTO %s(%s) VALUES %s;",
				group.Table, strings.Join(group.Columns, ","), strings.Join(tuples, ",")),
		})
	}
	return statements, nil
}

// BuildUpdates renders one UPDATE per row of a keyed group. Rows are not
// chunked: each carries its own SET values and WHERE key. A nil key value
// fails the whole build.
func BuildUpdates(group *grouping.KeyedGroup) ([]Statement, error) {
	statements := make([]Statement, 0, len(group.Rows))
	for i, row := range group.Rows {
		if row.KeyValue == nil {
			return nil, fmt.Errorf("%w: table %s key %s row %d", ErrNullKey, group.Table, group.KeyField, i)
		}
		assignments := make([]string, len(group.Columns))
		for j, column := range group.Columns {
			v, _ := row.Record.Value(column)
			assignments[j] = column + "=" + Literal(v)
		}
		statements = append(statements, Statement{
			Table: group.Table,
			Chunk: i,
			SQL: fmt.Sprintf("UPDATE %s SET %s WHERE %s=%s;",
				group.Table, strings.Join(assignments, ", "), group.KeyField, Literal(row.KeyValue)),
		})
	}
	return statements, nil
}

// BuildDeletes renders a keyed group as chunked DELETE ... WHERE key IN
// statements over the distinct key values, in first-seen order. A nil key
// value fails the whole build. Passing chunkSize <= 0 selects
// DefaultChunkSize.
func BuildDeletes(group *grouping.KeyedGroup, chunkSize int) ([]Statement, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var keys []string
	seen := make(map[string]bool)
	for i, row := range group.Rows {
		if row.KeyValue == nil {
			return nil, fmt.Errorf("%w: table %s key %s row %d", ErrNullKey, group.Table, group.KeyField, i)
		}
		literal := Literal(row.KeyValue)
		if !seen[literal] {
			seen[literal] = true
			keys = append(keys, literal)
		}
	}

	var statements []Statement
	for chunk := 0; chunk*chunkSize < len(keys); chunk++ {
		end := (chunk + 1) * chunkSize
		if end > len(keys) {
			end = len(keys)
		}
		statements = append(statements, Statement{
			Table: group.Table,
			Chunk: chunk,
			SQL: fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s);",
				group.Table, group.KeyField, strings.Join(keys[chunk*chunkSize:end], ",")),
		})
	}
	return statements, nil
}

// chunkRecords splits rows into consecutive slices of at most size rows.
// Boundaries never split a record, and concatenating the chunks reproduces
// the input exactly.
func chunkRecords(rows []record.Record, size int) [][]record.Record {
	var chunks [][]record.Record
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}
