package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (e *Executor) query(ctx context.Context, sqlText string) string {
	if strings.TrimSpace(sqlText) == "" {
		return "error: query requires sql"
	}
	upper := strings.ToUpper(strings.TrimSpace(sqlText))
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return "error: only read-only SELECT or WITH queries are allowed"
	}
	if e.DB == nil {
		return "error: no query interface in this sandbox"
	}

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(e.Limits.BashTimeoutS)*time.Second)
	defer cancel()

	e.Trace.Queries = append(e.Trace.Queries, sqlText)

	rows, err := e.DB.QueryContext(queryCtx, sqlText)
	if err != nil {
		return fmt.Sprintf("error: query failed: %v", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Sprintf("error: query failed: %v", err)
	}

	var b strings.Builder
	b.WriteString(strings.Join(cols, "\t"))
	b.WriteByte('\n')

	count := 0
	capped := false
	vals := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if e.Limits.QueryRowCap > 0 && count >= e.Limits.QueryRowCap {
			capped = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Sprintf("error: reading row: %v", err)
		}
		cells := make([]string, len(vals))
		for i, v := range vals {
			cells[i] = formatValue(v)
		}
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteByte('\n')
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Sprintf("error: reading rows: %v", err)
	}
	if capped {
		fmt.Fprintf(&b, "(stopped at %d rows)", count)
	} else {
		fmt.Fprintf(&b, "(%d rows)", count)
	}
	return b.String()
}

func (e *Executor) schema(ctx context.Context) string {
	if e.DB == nil {
		return "error: no query interface in this sandbox"
	}
	rows, err := e.DB.QueryContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return fmt.Sprintf("error: reading schema: %v", err)
	}
	defer rows.Close()
	var ddls []string
	for rows.Next() {
		var ddl string
		if err := rows.Scan(&ddl); err != nil {
			continue
		}
		ddls = append(ddls, ddl+";")
	}
	if len(ddls) == 0 {
		return "(no tables)"
	}
	return strings.Join(ddls, "\n\n")
}

func (e *Executor) tables(ctx context.Context) string {
	if e.DB == nil {
		return "error: no query interface in this sandbox"
	}
	names, err := e.tableNames(ctx)
	if err != nil {
		return fmt.Sprintf("error: listing tables: %v", err)
	}
	if len(names) == 0 {
		return "(no tables)"
	}
	return strings.Join(names, "\n")
}

func (e *Executor) sample(ctx context.Context, table string) string {
	if table == "" {
		return "error: sample requires a table name"
	}
	if e.DB == nil {
		return "error: no query interface in this sandbox"
	}
	names, err := e.tableNames(ctx)
	if err != nil {
		return fmt.Sprintf("error: listing tables: %v", err)
	}
	found := false
	for _, n := range names {
		if n == table {
			found = true
			break
		}
	}
	if !found {
		return fmt.Sprintf("error: no such table %q; available: %s", table, strings.Join(names, ", "))
	}
	rowCap := e.Limits.SampleRows
	if rowCap <= 0 {
		rowCap = 5
	}
	return e.query(ctx, fmt.Sprintf("SELECT * FROM %q LIMIT %d", table, rowCap))
}

func (e *Executor) tableNames(ctx context.Context) ([]string, error) {
	rows, err := e.DB.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
