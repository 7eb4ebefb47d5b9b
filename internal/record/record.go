package record

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record is one row of workflow data: an ordered mapping from field name to
// value. Field order is preserved across JSON round-trips so that column
// lists derived from a record are deterministic.
type Record struct {
	fields *orderedmap.OrderedMap[string, any]
}

// New creates an empty record.
func New() Record {
	return Record{fields: orderedmap.New[string, any]()}
}

// FromPairs builds a record from alternating field name / value arguments.
// It panics on an odd argument count or a non-string field name; it is meant
// for literal construction in code and tests.
func FromPairs(pairs ...any) Record {
	if len(pairs)%2 != 0 {
		panic("record.FromPairs: odd number of arguments")
	}
	r := New()
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("record.FromPairs: field name at index %d is not a string", i))
		}
		r.Set(name, pairs[i+1])
	}
	return r
}

// Set stores a field value, appending the field if it is new.
func (r Record) Set(field string, value any) {
	r.fields.Set(field, value)
}

// Value returns the value of a field and whether the field is present.
func (r Record) Value(field string) (any, bool) {
	if r.fields == nil {
		return nil, false
	}
	return r.fields.Get(field)
}

// Fields returns the field names in insertion order.
func (r Record) Fields() []string {
	if r.fields == nil {
		return nil
	}
	names := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Len returns the number of fields.
func (r Record) Len() int {
	if r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.fields == nil {
		return []byte("{}"), nil
	}
	return r.fields.MarshalJSON()
}

func (r *Record) UnmarshalJSON(data []byte) error {
	fields := orderedmap.New[string, any]()
	if err := fields.UnmarshalJSON(data); err != nil {
		return err
	}
	r.fields = fields
	return nil
}

// RowsAffected builds the single summary record emitted by the write
// operations.
func RowsAffected(n int64) Record {
	r := New()
	r.Set("rowsAffected", n)
	return r
}

// ErrorRecord builds the record emitted instead of an error when
// continue-on-failure is enabled.
func ErrorRecord(err error) Record {
	r := New()
	r.Set("error", err.Error())
	return r
}
