package sandbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/signalnine/archbench/internal/dataset"
	"github.com/signalnine/archbench/internal/protocol"
)

// editorTools is the vocabulary for the four authoring architectures; only
// exploration gets the inspection tools.
var editorTools = []protocol.Kind{
	protocol.KindReadFile,
	protocol.KindWriteFile,
	protocol.KindListFiles,
	protocol.KindDone,
}

const typedSystemPrompt = `You are working in a small Go analytics codebase. The app loads its whole
dataset into memory and computes metrics with plain typed functions. The
existing types and accessors live under analytics/.

Available tools: read_file(path), write_file(path, content),
list_files(path), done.

` + protocolHelp + `

Write new metric functions in package main, reusing the existing helpers
where they fit. Do not define func main and do not rename existing files.
When the metric function is in place, reply with <tool>done</tool>.`

func newAppTyped(ds *dataset.Dataset) *Config {
	cfg := &Config{
		ID: "app-typed",
		ContextFiles: []string{
			"analytics/types.go",
			"analytics/queries.go",
			"analytics/derived.go",
		},
		TargetFile:   "analytics/metrics.go",
		KeyFiles:     []string{"analytics/queries.go", "analytics/derived.go"},
		Tools:        editorTools,
		SystemPrompt: typedSystemPrompt,
	}
	cfg.TaskPrompt = func(task dataset.Task) string {
		return fmt.Sprintf("%s\n\nImplement this as:\n\n  func %s(d Dataset) float64\n\nin %s. The dataset is already loaded; your function receives it as the\nargument. Finish with <tool>done</tool>.",
			task.Description, task.FuncName, cfg.TargetFile)
	}
	cfg.Validate = func(workspaceDir string, task dataset.Task) ValidationResult {
		return validateTyped(workspaceDir, task, ds)
	}
	cfg.Lint = lintTyped
	return cfg
}

// validateTyped interprets the whole analytics tree plus the agent's file
// and calls the discovered function with the live dataset.
func validateTyped(workspaceDir string, task dataset.Task, ds *dataset.Dataset) ValidationResult {
	candidates := funcCandidates(task.FuncName)
	_, fn, err := findGoArtifact(workspaceDir, "analytics", "analytics/metrics.go", candidates, stockNames("app-typed"))
	if err != nil {
		return invalid(FailureArtifactNotFound, "%v", err)
	}
	sources, err := readWorkspaceGo(workspaceDir, "analytics")
	if err != nil {
		return invalid(FailureArtifactNotFound, "%v", err)
	}
	raw, err := json.Marshal(ds)
	if err != nil {
		return invalid(FailureRuntime, "encoding dataset: %v", err)
	}
	program := mergeGoSources(sources...) +
		fmt.Sprintf("\n\nvar archbenchDataset = MustLoadDataset(%q)\n", raw)
	v, err := evalExpr(context.Background(), program, fn+"(archbenchDataset)")
	if err != nil {
		return invalid(classifyEvalErr(err), "%v", err)
	}
	f, ok := asFloat(v)
	if !ok {
		return invalid(FailureWrongType, "%s returned %s, want a number", fn, typeName(v))
	}
	return succeed(f)
}

// lintTyped reports whether the analytics tree still interprets cleanly.
// Advisory only; validation decides pass or fail.
func lintTyped(workspaceDir string) []string {
	sources, err := readWorkspaceGo(workspaceDir, "analytics")
	if err != nil {
		return []string{fmt.Sprintf("lint: %v", err)}
	}
	if _, err := evalExpr(context.Background(), mergeGoSources(sources...), "true"); err != nil {
		return []string{fmt.Sprintf("analytics does not compile: %v", err)}
	}
	return nil
}
