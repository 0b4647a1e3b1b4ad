package main

import (
	"strconv"
	"strings"
)

// Query is an immutable select statement under construction. Every method
// returns a copy, so partial queries can be shared and extended freely.
type Query struct {
	selects []string
	from    string
	joins   []string
	wheres  []string
	groups  []string
}

// From starts a query against a table.
func From(table string) Query {
	return Query{from: table}
}

// Select adds output expressions.
func (q Query) Select(exprs ...string) Query {
	q.selects = append(append([]string{}, q.selects...), exprs...)
	return q
}

// Join adds an inner join.
func (q Query) Join(table, on string) Query {
	q.joins = append(append([]string{}, q.joins...), "JOIN "+table+" ON "+on)
	return q
}

// LeftJoin adds a left outer join.
func (q Query) LeftJoin(table, on string) Query {
	q.joins = append(append([]string{}, q.joins...), "LEFT JOIN "+table+" ON "+on)
	return q
}

// Where adds conditions; all conditions are ANDed together.
func (q Query) Where(conds ...string) Query {
	q.wheres = append(append([]string{}, q.wheres...), conds...)
	return q
}

// GroupBy adds grouping columns.
func (q Query) GroupBy(cols ...string) Query {
	q.groups = append(append([]string{}, q.groups...), cols...)
	return q
}

// SQL renders the statement.
func (q Query) SQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(q.selects) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(q.selects, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(q.from)
	for _, j := range q.joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	if len(q.wheres) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.wheres, " AND "))
	}
	if len(q.groups) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(q.groups, ", "))
	}
	return b.String()
}

// Aggregate expression helpers.

func Sum(expr string) string           { return "SUM(" + expr + ")" }
func Avg(expr string) string           { return "AVG(" + expr + ")" }
func Count(expr string) string         { return "COUNT(" + expr + ")" }
func CountDistinct(expr string) string { return "COUNT(DISTINCT " + expr + ")" }

// Condition helpers.

func Eq(col, lit string) string     { return col + " = '" + lit + "'" }
func NotNull(col string) string     { return col + " IS NOT NULL" }
func IsNull(col string) string      { return col + " IS NULL" }
func Gt(col, expr string) string    { return col + " > " + expr }
func LtEq(col, expr string) string  { return col + " <= " + expr }
func In(col string, q Query) string { return col + " IN " + Sub(q) }
func DaysAgo(col string, n int) string {
	return "date(" + col + ", '-" + strconv.Itoa(n) + " days')"
}

// Sub embeds a built query as a parenthesized subquery expression.
func Sub(q Query) string { return "(" + q.SQL() + ")" }
