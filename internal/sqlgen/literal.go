package sqlgen

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/timewave/sql-runner/internal/record"
)

// Literal renders a record value as inline SQL literal text. Values are
// inlined rather than bound as parameters; the generated SQL is only as safe
// as its inputs, so callers must treat row data as trusted. Strings are
// single-quoted with embedded quotes doubled, numbers and booleans are
// rendered bare, nil becomes NULL, and anything else is stringified and
// quoted.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case time.Time:
		return quote(x.Format(time.RFC3339))
	case []byte:
		return quote(string(x))
	default:
		return quote(fmt.Sprintf("%v", x))
	}
}

// Tuple renders one record as a parenthesized value list over the given
// columns, in column order. A field missing from the record renders as NULL,
// matching the permissive column-shape policy of the grouper.
func Tuple(rec record.Record, columns []string) string {
	values := make([]string, len(columns))
	for i, column := range columns {
		v, _ := rec.Value(column)
		values[i] = Literal(v)
	}
	return "(" + strings.Join(values, ",") + ")"
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
