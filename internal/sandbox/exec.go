package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/signalnine/archbench/internal/dataset"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

const evalTimeout = 10 * time.Second

// mergeGoSources flattens package-main files into a single program so the
// interpreter sees one compilation unit. Package clauses are dropped and
// import specs are hoisted and deduplicated.
func mergeGoSources(sources ...string) string {
	seen := make(map[string]bool)
	var specs []string
	var body strings.Builder
	for _, src := range sources {
		inImport := false
		for _, line := range strings.Split(src, "\n") {
			trim := strings.TrimSpace(line)
			switch {
			case inImport:
				if trim == ")" {
					inImport = false
				} else if trim != "" && !seen[trim] {
					seen[trim] = true
					specs = append(specs, trim)
				}
			case strings.HasPrefix(trim, "package "):
			case trim == "import (":
				inImport = true
			case strings.HasPrefix(trim, "import "):
				spec := strings.TrimSpace(strings.TrimPrefix(trim, "import"))
				if spec != "" && !seen[spec] {
					seen[spec] = true
					specs = append(specs, spec)
				}
			default:
				body.WriteString(line)
				body.WriteByte('\n')
			}
		}
	}
	var out strings.Builder
	out.WriteString("package main\n\n")
	if len(specs) > 0 {
		out.WriteString("import (\n")
		for _, spec := range specs {
			out.WriteString("\t" + spec + "\n")
		}
		out.WriteString(")\n\n")
	}
	out.WriteString(body.String())
	return out.String()
}

// compileError marks a failure in the program itself, as opposed to a
// failure while evaluating the probe expression against it.
type compileError struct{ err error }

func (e *compileError) Error() string { return e.err.Error() }
func (e *compileError) Unwrap() error { return e.err }

type evalOutcome struct {
	val reflect.Value
	err error
}

// evalExpr interprets program, then evaluates expr inside it. Interpretation
// runs on its own goroutine under a deadline; a hung program is abandoned.
func evalExpr(ctx context.Context, program, expr string) (reflect.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()
	done := make(chan evalOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- evalOutcome{err: fmt.Errorf("interpreter panic: %v", r)}
			}
		}()
		i := interp.New(interp.Options{})
		if err := i.Use(stdlib.Symbols); err != nil {
			done <- evalOutcome{err: fmt.Errorf("interpreter setup: %w", err)}
			return
		}
		if _, err := i.Eval(program); err != nil {
			done <- evalOutcome{err: &compileError{err}}
			return
		}
		v, err := i.Eval(expr)
		done <- evalOutcome{val: v, err: err}
	}()
	select {
	case out := <-done:
		return out.val, out.err
	case <-ctx.Done():
		return reflect.Value{}, fmt.Errorf("interpreter timed out after %s", evalTimeout)
	}
}

func classifyEvalErr(err error) FailureKind {
	var ce *compileError
	if errors.As(err, &ce) {
		return FailureCompile
	}
	return FailureRuntime
}

// asFloat widens any numeric interpreter value.
func asFloat(v reflect.Value) (float64, bool) {
	if !v.IsValid() {
		return 0, false
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Interface:
		return asFloat(v.Elem())
	}
	return 0, false
}

func typeName(v reflect.Value) string {
	if !v.IsValid() {
		return "nothing"
	}
	if v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	return v.Type().String()
}

// openMemoryDB builds a throwaway in-memory store loaded with the dataset.
func openMemoryDB(ds *dataset.Dataset) (*sql.DB, error) {
	db, err := dataset.OpenDB(":memory:")
	if err != nil {
		return nil, err
	}
	if err := dataset.LoadDB(db, ds); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// queryScalar runs q expecting a single numeric cell in the first column of
// the first row.
func queryScalar(db *sql.DB, q string) ValidationResult {
	rows, err := db.Query(q)
	if err != nil {
		return invalid(FailureRuntime, "query failed: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return invalid(FailureRuntime, "query failed: %v", err)
		}
		return invalid(FailureRuntime, "query returned no rows")
	}
	cols, err := rows.Columns()
	if err != nil {
		return invalid(FailureRuntime, "query failed: %v", err)
	}
	vals := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return invalid(FailureRuntime, "scanning result: %v", err)
	}
	if vals[0] == nil {
		return invalid(FailureRuntime, "query returned NULL")
	}
	f, ok := cellFloat(vals[0])
	if !ok {
		return invalid(FailureWrongType, "query returned %T (%v), want a number", vals[0], vals[0])
	}
	return succeed(f)
}

func cellFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
