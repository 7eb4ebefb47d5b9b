package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timewave/sql-runner/internal/dbclient"
	"github.com/timewave/sql-runner/internal/grouping"
	"github.com/timewave/sql-runner/internal/record"
)

// fakeConnection records every dispatched statement and how often the
// connection lifecycle methods run.
type fakeConnection struct {
	mu        sync.Mutex
	queries   []string
	connects  int
	closes    int
	queryFunc func(sqlText string) (dbclient.Result, error)
}

func (f *fakeConnection) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return nil
}

func (f *fakeConnection) Query(ctx context.Context, sqlText string) (dbclient.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, sqlText)
	f.mu.Unlock()
	if f.queryFunc != nil {
		return f.queryFunc(sqlText)
	}
	return dbclient.Result{RowsAffected: []int64{1}}, nil
}

func (f *fakeConnection) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func staticResolver(params map[string]string) grouping.ParamResolver {
	return func(name string, rowIndex int) (string, error) {
		return params[name], nil
	}
}

func TestRunInsert(t *testing.T) {
	conn := &fakeConnection{
		queryFunc: func(sqlText string) (dbclient.Result, error) {
			// One affected row per rendered tuple
			tuples := int64(strings.Count(sqlText, "),(")) + 1
			return dbclient.Result{RowsAffected: []int64{tuples}}, nil
		},
	}
	r := New(conn, Config{})

	items := []record.Record{
		record.FromPairs("id", 1, "name", "a"),
		record.FromPairs("id", 2, "name", "b"),
	}
	out, err := r.Run(context.Background(), OpInsert, items, staticResolver(map[string]string{
		"table":   "t",
		"columns": "id,name",
	}))
	require.NoError(t, err)

	require.Len(t, conn.queries, 1)
	assert.Equal(t, "INSERT INTO t(id,name) VALUES (1,'a'),(2,'b');", conn.queries[0])

	require.Len(t, out, 1)
	affected, _ := out[0].Value("rowsAffected")
	assert.Equal(t, int64(2), affected)

	assert.Equal(t, 1, conn.connects)
	assert.Equal(t, 1, conn.closes)
}

func TestRunUpdate(t *testing.T) {
	conn := &fakeConnection{}
	r := New(conn, Config{})

	items := []record.Record{
		record.FromPairs("id", 1, "name", "a"),
		record.FromPairs("id", 2, "name", "b"),
	}
	out, err := r.Run(context.Background(), OpUpdate, items, staticResolver(map[string]string{
		"table": "t",
	}))
	require.NoError(t, err)

	require.Len(t, conn.queries, 2)
	assert.Contains(t, conn.queries, "UPDATE t SET name='a' WHERE id=1;")
	assert.Contains(t, conn.queries, "UPDATE t SET name='b' WHERE id=2;")

	require.Len(t, out, 1)
	affected, _ := out[0].Value("rowsAffected")
	assert.Equal(t, int64(2), affected)
}

func TestRunDelete(t *testing.T) {
	conn := &fakeConnection{
		queryFunc: func(sqlText string) (dbclient.Result, error) {
			return dbclient.Result{RowsAffected: []int64{2}}, nil
		},
	}
	r := New(conn, Config{})

	items := []record.Record{
		record.FromPairs("id", 3),
		record.FromPairs("id", 3),
		record.FromPairs("id", 4),
	}
	out, err := r.Run(context.Background(), OpDelete, items, staticResolver(map[string]string{
		"table": "t",
	}))
	require.NoError(t, err)

	require.Len(t, conn.queries, 1)
	assert.Equal(t, "DELETE FROM t WHERE id IN (3,4);", conn.queries[0])

	require.Len(t, out, 1)
	affected, _ := out[0].Value("rowsAffected")
	assert.Equal(t, int64(2), affected)
}

func TestRunExecuteQuery(t *testing.T) {
	row := record.FromPairs("id", 1, "name", "a")
	conn := &fakeConnection{
		queryFunc: func(sqlText string) (dbclient.Result, error) {
			return dbclient.Result{Recordsets: [][]record.Record{{row}}}, nil
		},
	}
	r := New(conn, Config{})

	items := []record.Record{record.New()}
	out, err := r.Run(context.Background(), OpExecuteQuery, items, staticResolver(map[string]string{
		"query": "SELECT * FROM t",
	}))
	require.NoError(t, err)

	require.Len(t, conn.queries, 1)
	assert.Equal(t, "SELECT * FROM t", conn.queries[0])

	require.Len(t, out, 1)
	name, _ := out[0].Value("name")
	assert.Equal(t, "a", name)
	assert.Equal(t, 1, conn.closes)
}

func TestUnsupportedOperation(t *testing.T) {
	conn := &fakeConnection{}
	r := New(conn, Config{})

	out, err := r.Run(context.Background(), Operation("upsert"), nil, staticResolver(nil))
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Nil(t, out)

	// No statements dispatched, connection still released
	assert.Empty(t, conn.queries)
	assert.Equal(t, 1, conn.closes)
}

func TestConstructionFailure(t *testing.T) {
	conn := &fakeConnection{}
	r := New(conn, Config{})

	// Null key value: no statement may be emitted
	items := []record.Record{record.FromPairs("name", "a")}
	_, err := r.Run(context.Background(), OpUpdate, items, staticResolver(map[string]string{
		"table": "t",
	}))
	assert.ErrorIs(t, err, ErrConstruction)
	assert.Empty(t, conn.queries)
	assert.Equal(t, 1, conn.closes)
}

func TestContinueOnFail(t *testing.T) {
	boom := errors.New("constraint violation")
	conn := &fakeConnection{
		queryFunc: func(sqlText string) (dbclient.Result, error) {
			return dbclient.Result{}, boom
		},
	}
	r := New(conn, Config{ContinueOnFail: true})

	items := []record.Record{record.FromPairs("id", 1)}
	out, err := r.Run(context.Background(), OpInsert, items, staticResolver(map[string]string{
		"table": "t",
	}))
	require.NoError(t, err)

	// Exactly one {error} record, connection still closed
	require.Len(t, out, 1)
	detail, ok := out[0].Value("error")
	require.True(t, ok)
	assert.Contains(t, detail.(string), "constraint violation")
	assert.Equal(t, 1, conn.closes)
}

func TestExecutionFailurePropagates(t *testing.T) {
	conn := &fakeConnection{
		queryFunc: func(sqlText string) (dbclient.Result, error) {
			return dbclient.Result{}, errors.New("connectivity loss")
		},
	}
	r := New(conn, Config{})

	items := []record.Record{record.FromPairs("id", 1)}
	_, err := r.Run(context.Background(), OpInsert, items, staticResolver(map[string]string{
		"table": "t",
	}))
	assert.ErrorIs(t, err, ErrExecution)
	assert.Equal(t, 1, conn.closes)
}

func TestGroupsRouteToTheirTables(t *testing.T) {
	conn := &fakeConnection{}
	r := New(conn, Config{})

	items := []record.Record{
		record.FromPairs("id", 1),
		record.FromPairs("id", 2),
	}
	resolve := func(name string, rowIndex int) (string, error) {
		if name == "table" {
			if rowIndex == 0 {
				return "a", nil
			}
			return "b", nil
		}
		return "", nil
	}

	out, err := r.Run(context.Background(), OpInsert, items, resolve)
	require.NoError(t, err)

	require.Len(t, conn.queries, 2)
	assert.Contains(t, conn.queries, "INSERT INTO a(id) VALUES (1);")
	assert.Contains(t, conn.queries, "INSERT INTO b(id) VALUES (2);")

	affected, _ := out[0].Value("rowsAffected")
	assert.Equal(t, int64(2), affected)
}
