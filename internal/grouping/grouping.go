package grouping

import (
	"fmt"
	"strings"

	"github.com/timewave/sql-runner/internal/record"
)

// ParamResolver resolves a named step parameter for a given input row index.
// The host runtime may configure a different value per row, so every lookup
// carries the row index. An empty string means the parameter is unset.
type ParamResolver func(name string, rowIndex int) (string, error)

// DefaultKeyField is used when updateKey/deleteKey resolve to empty.
const DefaultKeyField = "id"

// TableGroup holds the records destined for one target table, with the
// column list fixed from the first record assigned to the group.
type TableGroup struct {
	Table   string
	Columns []string
	Records []record.Record
}

// KeyedRow pairs a record with the value of its resolved key field. The key
// value may be nil when the record lacks the field; the statement builder
// rejects nil keys before any SQL is emitted.
type KeyedRow struct {
	KeyValue any
	Record   record.Record
}

// KeyedGroup holds the rows destined for one (table, key field) pair, used
// by the update and delete flows. Columns never include the key field.
type KeyedGroup struct {
	Table    string
	KeyField string
	Columns  []string
	Rows     []KeyedRow
}

// ForInsert partitions records by target table, in first-insertion order.
// The group's column list comes from the per-row "columns" parameter of the
// first record routed to the table, falling back to that record's own fields.
func ForInsert(records []record.Record, resolve ParamResolver) ([]*TableGroup, error) {
	var groups []*TableGroup
	byTable := make(map[string]*TableGroup)

	for i, rec := range records {
		table, err := resolve("table", i)
		if err != nil {
			return nil, err
		}
		if table == "" {
			return nil, fmt.Errorf("no table set for row %d", i)
		}

		group, ok := byTable[table]
		if !ok {
			columnsRaw, err := resolve("columns", i)
			if err != nil {
				return nil, err
			}
			columns := SplitColumns(columnsRaw)
			if len(columns) == 0 {
				columns = rec.Fields()
			}
			group = &TableGroup{Table: table, Columns: columns}
			byTable[table] = group
			groups = append(groups, group)
		}
		group.Records = append(group.Records, rec)
	}
	return groups, nil
}

// ForKeyed partitions records by (table, key field), in first-insertion
// order. keyParam names the parameter carrying the key field ("updateKey" or
// "deleteKey"); it defaults to "id" when unset. The group's column list
// excludes the key field.
func ForKeyed(records []record.Record, resolve ParamResolver, keyParam string) ([]*KeyedGroup, error) {
	var groups []*KeyedGroup
	byKey := make(map[string]*KeyedGroup)

	for i, rec := range records {
		table, err := resolve("table", i)
		if err != nil {
			return nil, err
		}
		if table == "" {
			return nil, fmt.Errorf("no table set for row %d", i)
		}
		keyField, err := resolve(keyParam, i)
		if err != nil {
			return nil, err
		}
		if keyField == "" {
			keyField = DefaultKeyField
		}

		groupKey := table + "\x00" + keyField
		group, ok := byKey[groupKey]
		if !ok {
			columnsRaw, err := resolve("columns", i)
			if err != nil {
				return nil, err
			}
			columns := SplitColumns(columnsRaw)
			if len(columns) == 0 {
				columns = rec.Fields()
			}
			group = &KeyedGroup{
				Table:    table,
				KeyField: keyField,
				Columns:  withoutField(columns, keyField),
			}
			byKey[groupKey] = group
			groups = append(groups, group)
		}

		keyValue, _ := rec.Value(group.KeyField)
		group.Rows = append(group.Rows, KeyedRow{KeyValue: keyValue, Record: rec})
	}
	return groups, nil
}

// SplitColumns parses a comma-separated column list, trimming whitespace and
// dropping empty entries.
func SplitColumns(raw string) []string {
	var columns []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			columns = append(columns, name)
		}
	}
	return columns
}

func withoutField(columns []string, field string) []string {
	var out []string
	for _, name := range columns {
		if name != field {
			out = append(out, name)
		}
	}
	return out
}
