// Package tools executes parsed tool calls against one workspace and turns
// every outcome, success or failure, into bounded observation text. Nothing
// in here returns an error to the agent loop; only workspace setup, which
// happens elsewhere, can abort a run.
package tools

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/signalnine/archbench/internal/config"
	"github.com/signalnine/archbench/internal/protocol"
)

// AnswerFile is where the terminal answer tool records its value, keeping
// validation a pure function of (workspaceDir, task).
const AnswerFile = "answer.txt"

// Trace records what the agent touched. The scorer reads it afterwards;
// nothing else does.
type Trace struct {
	ReadFiles []string
	Writes    []string
	Commands  []string
	Queries   []string
	Counts    map[string]int
}

func NewTrace() *Trace {
	return &Trace{Counts: map[string]int{}}
}

type Executor struct {
	WorkspaceDir string
	Limits       config.Limits
	Allowed      map[protocol.Kind]bool
	DB           *sql.DB
	Trace        *Trace
}

func New(workspaceDir string, limits config.Limits, allowed []protocol.Kind) *Executor {
	set := map[protocol.Kind]bool{}
	for _, k := range allowed {
		set[k] = true
	}
	return &Executor{
		WorkspaceDir: workspaceDir,
		Limits:       limits,
		Allowed:      set,
		Trace:        NewTrace(),
	}
}

// Execute applies one call and returns the observation plus whether the call
// ends the run. Failures of any kind come back as observation text.
func (e *Executor) Execute(ctx context.Context, call *protocol.Call) (string, bool) {
	e.Trace.Counts[call.Name]++

	if call.Kind == protocol.KindUnknown {
		return e.bound(fmt.Sprintf("error: unknown tool %q; available tools: %s", call.Name, e.toolList())), false
	}
	if !e.Allowed[call.Kind] {
		return e.bound(fmt.Sprintf("error: tool %q is not available in this sandbox; available tools: %s", call.Name, e.toolList())), false
	}

	var obs string
	terminal := false
	switch call.Kind {
	case protocol.KindReadFile:
		obs = e.readFile(call.Path)
	case protocol.KindWriteFile:
		obs = e.writeFile(call.Path, call.Content)
	case protocol.KindListFiles:
		obs = e.listFiles(call.Path)
	case protocol.KindBash:
		obs = e.bash(ctx, call.Command)
	case protocol.KindQuery:
		obs = e.query(ctx, call.SQL)
	case protocol.KindSchema:
		obs = e.schema(ctx)
	case protocol.KindSample:
		obs = e.sample(ctx, call.Table)
	case protocol.KindTables:
		obs = e.tables(ctx)
	case protocol.KindAnswer:
		obs, terminal = e.answer(call.Value)
	case protocol.KindDone:
		obs, terminal = "done", true
	}
	return e.bound(obs), terminal
}

func (e *Executor) answer(value string) (string, bool) {
	if value == "" {
		return "error: answer requires a value, e.g. <tool>answer</tool><value>42</value>", false
	}
	path := filepath.Join(e.WorkspaceDir, AnswerFile)
	if err := os.WriteFile(path, []byte(value+"\n"), 0o644); err != nil {
		return fmt.Sprintf("error: recording answer: %v", err), false
	}
	return fmt.Sprintf("recorded answer: %s", value), true
}

// resolve joins a workspace-relative path and refuses anything that escapes
// the workspace root.
func (e *Executor) resolve(rel string) (string, string, error) {
	if rel == "" {
		return "", "", fmt.Errorf("path is required")
	}
	root := filepath.Clean(e.WorkspaceDir)
	p := filepath.Clean(filepath.Join(root, filepath.FromSlash(rel)))
	if p != root && !strings.HasPrefix(p, root+string(os.PathSeparator)) {
		return "", "", fmt.Errorf("path %q escapes the workspace", rel)
	}
	clean, err := filepath.Rel(root, p)
	if err != nil {
		return "", "", fmt.Errorf("path %q escapes the workspace", rel)
	}
	return p, filepath.ToSlash(clean), nil
}

func (e *Executor) bound(obs string) string {
	cap := e.Limits.ObservationCap
	if cap > 0 && len(obs) > cap {
		return obs[:cap] + "\n...[truncated]"
	}
	return obs
}

func (e *Executor) toolList() string {
	var names []string
	for name, kind := range map[string]protocol.Kind{
		"read_file": protocol.KindReadFile, "write_file": protocol.KindWriteFile,
		"list_files": protocol.KindListFiles, "bash": protocol.KindBash,
		"query": protocol.KindQuery, "schema": protocol.KindSchema,
		"sample": protocol.KindSample, "tables": protocol.KindTables,
		"answer": protocol.KindAnswer, "done": protocol.KindDone,
	} {
		if e.Allowed[kind] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
