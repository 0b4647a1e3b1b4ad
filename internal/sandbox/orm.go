package sandbox

import (
	"context"
	"fmt"
	"reflect"

	"github.com/signalnine/archbench/internal/dataset"
)

const ormSystemPrompt = `You are working in a Go codebase that talks to its SQLite store through a
small query builder. Table descriptors live in orm/schema.go, the builder
in orm/builder.go, and reference queries in orm/examples.go. Metrics are
expressed as builder functions returning a Query; the app renders and runs
them elsewhere.

Available tools: read_file(path), write_file(path, content),
list_files(path), done.

` + protocolHelp + `

Write new metric builders in package main in orm/metrics.go. Use the
descriptors and helpers rather than hand-written SQL strings. Do not
execute queries yourself and do not define func main. When the builder is
in place, reply with <tool>done</tool>.`

func newAppORM(ds *dataset.Dataset) *Config {
	cfg := &Config{
		ID: "app-orm",
		ContextFiles: []string{
			"orm/schema.go",
			"orm/builder.go",
			"orm/store.go",
			"orm/examples.go",
		},
		TargetFile:   "orm/metrics.go",
		KeyFiles:     []string{"orm/schema.go", "orm/builder.go"},
		Tools:        editorTools,
		SystemPrompt: ormSystemPrompt,
	}
	cfg.TaskPrompt = func(task dataset.Task) string {
		return fmt.Sprintf("%s\n\nImplement this as:\n\n  func %s() Query\n\nin %s. The returned query must select exactly one numeric value. Finish\nwith <tool>done</tool>.",
			task.Description, task.FuncName, cfg.TargetFile)
	}
	cfg.Validate = func(workspaceDir string, task dataset.Task) ValidationResult {
		return validateORM(workspaceDir, task, ds)
	}
	return cfg
}

// validateORM interprets the orm tree, renders the discovered builder's SQL,
// and runs it against a fresh store.
func validateORM(workspaceDir string, task dataset.Task, ds *dataset.Dataset) ValidationResult {
	candidates := funcCandidates(task.FuncName)
	_, fn, err := findGoArtifact(workspaceDir, "orm", "orm/metrics.go", candidates, stockNames("app-orm"))
	if err != nil {
		return invalid(FailureArtifactNotFound, "%v", err)
	}
	sources, err := readWorkspaceGo(workspaceDir, "orm")
	if err != nil {
		return invalid(FailureArtifactNotFound, "%v", err)
	}
	v, err := evalExpr(context.Background(), mergeGoSources(sources...), fn+"().SQL()")
	if err != nil {
		return invalid(classifyEvalErr(err), "%v", err)
	}
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if !v.IsValid() || v.Kind() != reflect.String {
		return invalid(FailureWrongType, "%s did not produce a SQL string (got %s)", fn, typeName(v))
	}
	db, err := openMemoryDB(ds)
	if err != nil {
		return invalid(FailureRuntime, "loading store: %v", err)
	}
	defer db.Close()
	return queryScalar(db, v.String())
}
