package sandbox

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/signalnine/archbench/internal/dataset"
	"gopkg.in/yaml.v3"
)

const semanticSystemPrompt = `You are working in a governed metrics layer. Metrics are declared, not
written as queries: a measure names a staging view, an expression, an
aggregation, and optional SQL filters, and the layer compiles it to a
scalar query. A ratio measure divides two other measures by name. The
existing definitions are in measures/measures.yml and the available views
and aggregations in measures/schema.yml.

Available tools: read_file(path), write_file(path, content),
list_files(path), done.

` + protocolHelp + `

Declare new measures in YAML under measures/, either in a new file or
appended to measures.yml, following the existing format exactly. When the
measure is declared, reply with <tool>done</tool>.`

// measureDef is one declared metric. Simple measures aggregate an
// expression over a table; ratio measures reference two other measures.
type measureDef struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Table       string   `yaml:"table"`
	Expression  string   `yaml:"expression"`
	Aggregation string   `yaml:"aggregation"`
	Filters     []string `yaml:"filters"`
	Type        string   `yaml:"type"`
	Numerator   string   `yaml:"numerator"`
	Denominator string   `yaml:"denominator"`
}

type measureFile struct {
	Measures []measureDef `yaml:"measures"`
}

func newSemanticLayer(ds *dataset.Dataset) *Config {
	cfg := &Config{
		ID: "semantic-layer",
		ContextFiles: []string{
			"measures/measures.yml",
			"measures/schema.yml",
		},
		TargetFile:   "measures/<task_id>.yml",
		KeyFiles:     []string{"measures/measures.yml", "measures/schema.yml"},
		Tools:        editorTools,
		SystemPrompt: semanticSystemPrompt,
	}
	cfg.TaskPrompt = func(task dataset.Task) string {
		return fmt.Sprintf("%s\n\nDeclare this as a measure named %q. Finish with <tool>done</tool>.",
			task.Description, task.MeasureName)
	}
	cfg.Validate = func(workspaceDir string, task dataset.Task) ValidationResult {
		return validateSemantic(workspaceDir, task, ds)
	}
	return cfg
}

// validateSemantic compiles the task's measure to SQL and runs it against a
// fresh store with the staging views registered.
func validateSemantic(workspaceDir string, task dataset.Task, ds *dataset.Dataset) ValidationResult {
	measures, parseErrs, err := loadMeasures(workspaceDir)
	if err != nil {
		return invalid(FailureArtifactNotFound, "%v", err)
	}
	m, found := findMeasure(measures, task)
	if !found {
		if len(parseErrs) > 0 {
			return invalid(FailureCompile, "measure %s not found; %s", task.MeasureName, strings.Join(parseErrs, "; "))
		}
		names := make([]string, 0, len(measures))
		for n := range measures {
			names = append(names, n)
		}
		sort.Strings(names)
		return invalid(FailureArtifactNotFound, "no measure named %s (defined: %s)", task.MeasureName, strings.Join(names, ", "))
	}
	query, err := measureSQL(m, measures, 0)
	if err != nil {
		return invalid(FailureCompile, "%v", err)
	}
	db, err := openMemoryDB(ds)
	if err != nil {
		return invalid(FailureRuntime, "loading store: %v", err)
	}
	defer db.Close()
	if err := registerModels(db, workspaceDir, "models"); err != nil {
		return invalid(FailureRuntime, "registering staging views: %v", err)
	}
	return queryScalar(db, query)
}

// loadMeasures parses every YAML file under measures/. Later files override
// earlier definitions of the same name, so agents can shadow stock measures.
// Files that fail to parse are reported but do not block the rest.
func loadMeasures(workspaceDir string) (map[string]measureDef, []string, error) {
	root := filepath.Join(workspaceDir, "measures")
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && (strings.HasSuffix(d.Name(), ".yml") || strings.HasSuffix(d.Name(), ".yaml")) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("no measures directory: %v", err)
	}
	sort.Strings(paths)
	measures := make(map[string]measureDef)
	var parseErrs []string
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Sprintf("%s: %v", filepath.Base(p), err))
			continue
		}
		var f measureFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			parseErrs = append(parseErrs, fmt.Sprintf("%s: %v", filepath.Base(p), err))
			continue
		}
		for _, m := range f.Measures {
			if m.Name != "" {
				measures[m.Name] = m
			}
		}
	}
	return measures, parseErrs, nil
}

// findMeasure resolves the task's measure: exact name, then normalized
// name, then a unique keyword match.
func findMeasure(measures map[string]measureDef, task dataset.Task) (measureDef, bool) {
	if m, ok := measures[task.MeasureName]; ok {
		return m, true
	}
	want := normalizeName(task.MeasureName)
	for name, m := range measures {
		if normalizeName(name) == want {
			return m, true
		}
	}
	var best measureDef
	bestScore, ties := 0, 0
	for name, m := range measures {
		if s := keywordScore(name, task.Keywords); s > 0 {
			switch {
			case s > bestScore:
				best, bestScore, ties = m, s, 1
			case s == bestScore:
				ties++
			}
		}
	}
	if bestScore > 0 && ties == 1 {
		return best, true
	}
	return measureDef{}, false
}

var aggregations = map[string]string{
	"sum":            "SUM(%s)",
	"avg":            "AVG(%s)",
	"min":            "MIN(%s)",
	"max":            "MAX(%s)",
	"count":          "COUNT(%s)",
	"count_distinct": "COUNT(DISTINCT %s)",
}

// measureSQL compiles a measure to a scalar SELECT. Ratio measures embed
// their operands as scalar subqueries; the 1.0 factor forces real division.
func measureSQL(m measureDef, all map[string]measureDef, depth int) (string, error) {
	if depth > 3 {
		return "", fmt.Errorf("measure %s: reference chain too deep", m.Name)
	}
	switch m.Type {
	case "", "simple":
		agg, ok := aggregations[strings.ToLower(m.Aggregation)]
		if !ok {
			return "", fmt.Errorf("measure %s: unknown aggregation %q", m.Name, m.Aggregation)
		}
		if m.Table == "" || m.Expression == "" {
			return "", fmt.Errorf("measure %s: table and expression are required", m.Name)
		}
		q := "SELECT " + fmt.Sprintf(agg, m.Expression) + " FROM " + m.Table
		if len(m.Filters) > 0 {
			q += " WHERE " + strings.Join(m.Filters, " AND ")
		}
		return q, nil
	case "ratio":
		num, ok := all[m.Numerator]
		if !ok {
			return "", fmt.Errorf("measure %s: numerator references unknown measure %q", m.Name, m.Numerator)
		}
		den, ok := all[m.Denominator]
		if !ok {
			return "", fmt.Errorf("measure %s: denominator references unknown measure %q", m.Name, m.Denominator)
		}
		numSQL, err := measureSQL(num, all, depth+1)
		if err != nil {
			return "", err
		}
		denSQL, err := measureSQL(den, all, depth+1)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("SELECT (%s) * 1.0 / (%s)", numSQL, denSQL), nil
	default:
		return "", fmt.Errorf("measure %s: unknown type %q", m.Name, m.Type)
	}
}
