// Package query builds parameterized MySQL statements for the repositories.
// Column lists generated from maps are sorted so the same input always
// yields the same SQL, which keeps sqlmock expectations stable.
package query

import (
	"fmt"
	"sort"
	"strings"
)

type verb int

const (
	verbSelect verb = iota
	verbInsert
	verbUpdate
	verbDelete
)

// QueryResult is a built statement and its positional parameters
type QueryResult struct {
	SQL    string
	Params []interface{}
}

// Builder accumulates the clauses of a single statement
type Builder struct {
	verb    verb
	table   string
	columns []string
	joins   []string
	where   []string
	args    []interface{}
	order   []string
	limit   int
	values  map[string]interface{}

	rowColumns []string
	rows       [][]interface{}
}

// From starts a SELECT on table
func From(table string) *Builder {
	return &Builder{verb: verbSelect, table: table}
}

// Insert starts a single-row INSERT of data
func Insert(table string, data map[string]interface{}) *Builder {
	return &Builder{verb: verbInsert, table: table, values: data}
}

// BulkInsert starts a multi-row INSERT with a fixed column order
func BulkInsert(table string, columns []string, rows [][]interface{}) *Builder {
	return &Builder{verb: verbInsert, table: table, rowColumns: columns, rows: rows}
}

// Update starts an UPDATE on table; columns are added with Set
func Update(table string) *Builder {
	return &Builder{verb: verbUpdate, table: table, values: map[string]interface{}{}}
}

// Delete starts a DELETE on table
func Delete(table string) *Builder {
	return &Builder{verb: verbDelete, table: table}
}

func quote(name string) string { return "`" + name + "`" }

// qualify prefixes bare column names with the builder's table.
// Expressions, aliases and already-qualified names pass through.
func (b *Builder) qualify(col string) string {
	if col == "*" || strings.ContainsAny(col, ".`( ") {
		return col
	}
	return quote(b.table) + "." + quote(col)
}

// Select lists the columns of a SELECT
func (b *Builder) Select(columns ...string) *Builder {
	for _, c := range columns {
		b.columns = append(b.columns, b.qualify(c))
	}
	return b
}

// Join adds "<kind> JOIN table AS alias ON cond"
func (b *Builder) Join(kind, table, alias, on string) *Builder {
	b.joins = append(b.joins, fmt.Sprintf("%s JOIN %s AS %s ON %s", kind, quote(table), quote(alias), on))
	return b
}

// Where ANDs a condition with its arguments
func (b *Builder) Where(cond string, args ...interface{}) *Builder {
	b.where = append(b.where, cond)
	b.args = append(b.args, args...)
	return b
}

// WhereIn adds "column IN (?, ...)". An empty set matches nothing.
func (b *Builder) WhereIn(column string, values []interface{}) *Builder {
	if len(values) == 0 {
		return b.Where("1 = 0")
	}
	return b.Where(fmt.Sprintf("%s IN (%s)", column, placeholders(len(values))), values...)
}

// Set merges data into the columns an UPDATE assigns
func (b *Builder) Set(data map[string]interface{}) *Builder {
	for k, v := range data {
		b.values[k] = v
	}
	return b
}

// OrderBy appends an ORDER BY term
func (b *Builder) OrderBy(column, direction string) *Builder {
	b.order = append(b.order, b.qualify(column)+" "+direction)
	return b
}

// Limit caps the rows a SELECT returns
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Build renders the statement
func (b *Builder) Build() QueryResult {
	switch b.verb {
	case verbInsert:
		if b.rowColumns != nil {
			return b.buildBulkInsert()
		}
		return b.buildInsert()
	case verbUpdate:
		return b.buildUpdate()
	case verbDelete:
		return QueryResult{SQL: "DELETE FROM " + quote(b.table) + b.whereSQL(), Params: b.args}
	default:
		return QueryResult{SQL: b.selectSQL(), Params: b.args}
	}
}

func (b *Builder) whereSQL() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func (b *Builder) selectSQL() string {
	cols := "*"
	if len(b.columns) > 0 {
		cols = strings.Join(b.columns, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, quote(b.table))
	for _, j := range b.joins {
		sb.WriteString(" " + j)
	}
	sb.WriteString(b.whereSQL())
	if len(b.order) > 0 {
		sb.WriteString(" ORDER BY " + strings.Join(b.order, ", "))
	}
	if b.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", b.limit)
	}
	return sb.String()
}

func (b *Builder) buildInsert() QueryResult {
	cols, args := b.sortedValues()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
	}
	return QueryResult{
		SQL:    fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(b.table), strings.Join(quoted, ", "), placeholders(len(cols))),
		Params: args,
	}
}

func (b *Builder) buildBulkInsert() QueryResult {
	quoted := make([]string, len(b.rowColumns))
	for i, c := range b.rowColumns {
		quoted[i] = quote(c)
	}

	tuple := "(" + placeholders(len(b.rowColumns)) + ")"
	tuples := make([]string, len(b.rows))
	var args []interface{}
	for i, row := range b.rows {
		tuples[i] = tuple
		args = append(args, row...)
	}

	return QueryResult{
		SQL:    fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", quote(b.table), strings.Join(quoted, ", "), strings.Join(tuples, ", ")),
		Params: args,
	}
}

func (b *Builder) buildUpdate() QueryResult {
	cols, args := b.sortedValues()
	assignments := make([]string, len(cols))
	for i, c := range cols {
		assignments[i] = quote(c) + " = ?"
	}
	return QueryResult{
		SQL:    fmt.Sprintf("UPDATE %s SET %s%s", quote(b.table), strings.Join(assignments, ", "), b.whereSQL()),
		Params: append(args, b.args...),
	}
}

func (b *Builder) sortedValues() ([]string, []interface{}) {
	cols := make([]string, 0, len(b.values))
	for k := range b.values {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	args := make([]interface{}, len(cols))
	for i, c := range cols {
		args[i] = b.values[c]
	}
	return cols, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
