// Package query holds the mutable query handle used by list endpoints and
// the Features decorator that translates HTTP query strings into filters,
// ordering, projections and pagination on that handle.
package query

import (
	"fmt"
	"strings"
)

// Kind tells the filter stage how to convert raw string values.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindTime
	// KindJSON columns can be selected but not filtered or sorted on.
	KindJSON
)

// Field maps an API attribute to a table column.  A Field without a Column
// is computed or populated after the query runs; it can be selected but not
// filtered or sorted on.
type Field struct {
	Name   string
	Column string
	Kind   Kind
	// Hidden fields are left out of the default projection.
	Hidden bool
}

// Queryable reports whether the field can appear in WHERE or ORDER BY.
func (f Field) Queryable() bool { return f.Column != "" && f.Kind != KindJSON }

// Query is a single-table SELECT under construction.  It is not safe for
// concurrent use.
type Query struct {
	table    string
	fields   []Field
	byName   map[string]Field
	virtuals map[string]string

	scope    []string
	where    []string
	args     []any
	order    []string
	selected []string
	limit    int
	offset   int
}

// New returns a query over table.  The first field must be the primary key;
// it is always part of the projection.  scope conditions are implicit
// filters that callers cannot lift (e.g. hiding soft-deleted rows).
func New(table string, fields []Field, scope ...string) *Query {
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	return &Query{
		table:    table,
		fields:   fields,
		byName:   byName,
		virtuals: map[string]string{},
		scope:    append([]string(nil), scope...),
	}
}

// Table returns the table name.
func (q *Query) Table() string { return q.table }

// Field looks up a field by API name.
func (q *Query) Field(name string) (Field, bool) {
	f, ok := q.byName[name]
	return f, ok
}

// Virtual declares a computed response attribute that is kept in projected
// responses whenever dependsOn is selected.
func (q *Query) Virtual(name, dependsOn string) *Query {
	q.virtuals[name] = dependsOn
	return q
}

// Where appends a raw condition.  Conditions are joined with AND.
func (q *Query) Where(cond string, args ...any) *Query {
	q.where = append(q.where, cond)
	q.args = append(q.args, args...)
	return q
}

// OrderBy appends an ordering on a queryable field.
func (q *Query) OrderBy(name string, desc bool) error {
	f, ok := q.byName[name]
	if !ok || !f.Queryable() {
		return fmt.Errorf("cannot sort by %q", name)
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	q.order = append(q.order, f.Column+" "+dir)
	return nil
}

// Ordered reports whether an ordering has been set.
func (q *Query) Ordered() bool { return len(q.order) > 0 }

// Select restricts the projection to the named fields.  The primary key is
// always included.
func (q *Query) Select(names ...string) error {
	for _, n := range names {
		if _, ok := q.byName[n]; !ok {
			return fmt.Errorf("unknown field %q", n)
		}
	}
	q.selected = append([]string(nil), names...)
	return nil
}

// Exclude selects every default field except the named ones.
func (q *Query) Exclude(names ...string) error {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := q.byName[n]; !ok {
			return fmt.Errorf("unknown field %q", n)
		}
		drop[n] = true
	}
	sel := make([]string, 0, len(q.fields))
	for _, f := range q.fields {
		if !f.Hidden && !drop[f.Name] {
			sel = append(sel, f.Name)
		}
	}
	q.selected = sel
	return nil
}

// Limit sets LIMIT and OFFSET.  A non-positive limit removes pagination.
func (q *Query) Limit(limit, offset int) *Query {
	q.limit, q.offset = limit, offset
	return q
}

// Pagination returns the current limit and offset.
func (q *Query) Pagination() (limit, offset int) { return q.limit, q.offset }

// Projected reports whether an explicit projection was requested.
func (q *Query) Projected() bool { return q.selected != nil }

// Fields returns the fields that will be loaded, primary key first.
func (q *Query) Fields() []Field {
	if q.selected == nil {
		out := make([]Field, 0, len(q.fields))
		for _, f := range q.fields {
			if !f.Hidden {
				out = append(out, f)
			}
		}
		return out
	}
	want := make(map[string]bool, len(q.selected)+1)
	want[q.fields[0].Name] = true
	for _, n := range q.selected {
		want[n] = true
	}
	out := make([]Field, 0, len(want))
	for _, f := range q.fields {
		if want[f.Name] {
			out = append(out, f)
		}
	}
	return out
}

// Has reports whether the named field is part of the projection.
func (q *Query) Has(name string) bool {
	for _, f := range q.Fields() {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Keep returns the response keys to retain for an explicit projection:
// the selected fields, the primary key and any virtual whose dependency was
// selected.  It returns nil when no projection was requested.
func (q *Query) Keep() []string {
	if q.selected == nil {
		return nil
	}
	keep := []string{q.fields[0].Name}
	keep = append(keep, q.selected...)
	for v, dep := range q.virtuals {
		for _, s := range q.selected {
			if s == dep {
				keep = append(keep, v)
				break
			}
		}
	}
	return keep
}

func (q *Query) conditions() string {
	conds := append(append([]string(nil), q.scope...), q.where...)
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// Build renders the SELECT statement and its arguments.
func (q *Query) Build() (string, []any) {
	cols := make([]string, 0, len(q.fields))
	for _, f := range q.Fields() {
		if f.Column != "" {
			cols = append(cols, f.Column)
		}
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.table)
	b.WriteString(q.conditions())
	if len(q.order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.order, ", "))
	}
	args := append([]any(nil), q.args...)
	if q.limit > 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, q.limit, q.offset)
	}
	return b.String(), args
}

// BuildCount renders a COUNT(*) over the same conditions, ignoring ordering,
// projection and pagination.
func (q *Query) BuildCount() (string, []any) {
	return "SELECT COUNT(*) FROM " + q.table + q.conditions(), append([]any(nil), q.args...)
}
