// Package sandbox defines the five data-access architectures the benchmark
// exercises. Each architecture is a Config value: the fixture tree the agent
// works in, the tool vocabulary it gets, the prompts, and a validator that
// finds and executes the agent's artifact. Configs are resolved once per run
// from a static constructor map.
package sandbox

import (
	"fmt"
	"math"

	"github.com/signalnine/archbench/internal/dataset"
	"github.com/signalnine/archbench/internal/protocol"
)

type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureArtifactNotFound FailureKind = "artifact_not_found"
	FailureCompile          FailureKind = "compile_error"
	FailureRuntime          FailureKind = "runtime_error"
	FailureWrongType        FailureKind = "wrong_type"
)

// ValidationResult reports whether the agent's artifact executed to a
// numeric value. Deciding whether that value is correct is the scorer's job.
type ValidationResult struct {
	Valid  bool
	Actual *float64
	Kind   FailureKind
	Err    string
}

func invalid(kind FailureKind, format string, args ...interface{}) ValidationResult {
	return ValidationResult{Kind: kind, Err: fmt.Sprintf(format, args...)}
}

// succeed wraps a computed value, downgrading NaN and infinities to runtime
// errors so a valid result is always finite.
func succeed(v float64) ValidationResult {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(FailureRuntime, "result is not a finite number: %v", v)
	}
	return ValidationResult{Valid: true, Actual: &v}
}

// Config is one architecture strategy. Validate is a pure function of the
// workspace and task; Setup and Lint are optional hooks.
type Config struct {
	ID           string
	ContextFiles []string
	TargetFile   string
	KeyFiles     []string
	Tools        []protocol.Kind
	SystemPrompt string
	TaskPrompt   func(task dataset.Task) string
	Validate     func(workspaceDir string, task dataset.Task) ValidationResult
	Setup        func(workspaceDir string) error
	Lint         func(workspaceDir string) []string
	// NeedsDB provisions data.db and wires the query tools; NeedsCSV adds
	// flat exports. Both are exploration-sandbox concerns.
	NeedsDB  bool
	NeedsCSV bool
}

var constructors = map[string]func(ds *dataset.Dataset) *Config{
	"app-typed":      newAppTyped,
	"app-orm":        newAppORM,
	"warehouse-sql":  newWarehouse,
	"semantic-layer": newSemanticLayer,
	"exploration":    newExploration,
}

// ids in presentation order; the map above is for lookup only.
var ids = []string{"app-typed", "app-orm", "warehouse-sql", "semantic-layer", "exploration"}

// IDs lists every architecture in stable order.
func IDs() []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// New resolves an architecture by id. The dataset is captured by the
// validator so execution always runs against freshly materialized data.
func New(id string, ds *dataset.Dataset) (*Config, error) {
	ctor, ok := constructors[id]
	if !ok {
		return nil, fmt.Errorf("unknown sandbox %q (known: %v)", id, ids)
	}
	return ctor(ds), nil
}

// Expand maps the CLI sandbox selector to config IDs: "all" or empty means
// every architecture.
func Expand(selector []string) ([]string, error) {
	if len(selector) == 0 {
		return IDs(), nil
	}
	for _, s := range selector {
		if s == "all" {
			return IDs(), nil
		}
	}
	for _, s := range selector {
		if _, ok := constructors[s]; !ok {
			return nil, fmt.Errorf("unknown sandbox %q (known: %v)", s, ids)
		}
	}
	return selector, nil
}

const protocolHelp = `Act in turns. Each reply must contain exactly one tool call written as
inline tags, for example:

  <tool>read_file</tool><path>analytics/queries.go</path>
  <tool>write_file</tool><path>FILE</path><content>...</content>

Only the first <tool> tag in a reply is honored. Prose around the tags is
ignored.`
