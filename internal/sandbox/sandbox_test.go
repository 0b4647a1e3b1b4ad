package sandbox_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/archbench/internal/dataset"
	"github.com/signalnine/archbench/internal/sandbox"
)

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// setupWorkspace copies an architecture's fixtures into a temp dir, the way
// the runner provisions a real workspace.
func setupWorkspace(t *testing.T, id string) string {
	t.Helper()
	dir := t.TempDir()
	fsys, err := sandbox.Fixtures(id)
	if err != nil {
		t.Fatalf("Fixtures(%s): %v", id, err)
	}
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dir, p)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		t.Fatalf("copying fixtures: %v", err)
	}
	return dir
}

func writeArtifact(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", rel, err)
	}
}

func taskByID(t *testing.T, ds *dataset.Dataset, id string) dataset.Task {
	t.Helper()
	for _, task := range dataset.Tasks(ds) {
		if task.ID == id {
			return task
		}
	}
	t.Fatalf("no task %s", id)
	return dataset.Task{}
}

func mustConfig(t *testing.T, id string, ds *dataset.Dataset) *sandbox.Config {
	t.Helper()
	cfg, err := sandbox.New(id, ds)
	if err != nil {
		t.Fatalf("New(%s): %v", id, err)
	}
	return cfg
}

func requireValid(t *testing.T, res sandbox.ValidationResult) float64 {
	t.Helper()
	if !res.Valid || res.Actual == nil {
		t.Fatalf("validation failed: kind=%q err=%q", res.Kind, res.Err)
	}
	return *res.Actual
}

func TestIDs(t *testing.T) {
	want := []string{"app-typed", "app-orm", "warehouse-sql", "semantic-layer", "exploration"}
	got := sandbox.IDs()
	if len(got) != len(want) {
		t.Fatalf("IDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("IDs()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestNewUnknown(t *testing.T) {
	if _, err := sandbox.New("mainframe", dataset.Generate(1)); err == nil {
		t.Error("expected error for unknown sandbox")
	}
}

func TestExpand(t *testing.T) {
	all := sandbox.IDs()
	tests := []struct {
		name     string
		selector []string
		want     []string
		wantErr  bool
	}{
		{"empty selects all", nil, all, false},
		{"all keyword", []string{"all"}, all, false},
		{"explicit subset", []string{"app-typed", "exploration"}, []string{"app-typed", "exploration"}, false},
		{"unknown id", []string{"mainframe"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sandbox.Expand(tt.selector)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expand: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expand = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Expand[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestConfigShape(t *testing.T) {
	ds := dataset.Generate(42)
	task := taskByID(t, ds, "active_user_arpu")
	for _, id := range sandbox.IDs() {
		cfg := mustConfig(t, id, ds)
		if cfg.ID != id {
			t.Errorf("%s: ID = %s", id, cfg.ID)
		}
		if cfg.SystemPrompt == "" {
			t.Errorf("%s: empty system prompt", id)
		}
		if len(cfg.Tools) == 0 {
			t.Errorf("%s: no tools", id)
		}
		if cfg.TaskPrompt(task) == "" {
			t.Errorf("%s: empty task prompt", id)
		}
		if cfg.Validate == nil {
			t.Errorf("%s: nil validator", id)
		}
		fsys, err := sandbox.Fixtures(id)
		if err != nil {
			t.Fatalf("%s: fixtures: %v", id, err)
		}
		for _, ctx := range cfg.ContextFiles {
			if _, err := fs.Stat(fsys, ctx); err != nil {
				t.Errorf("%s: context file %s not in fixtures: %v", id, ctx, err)
			}
		}
		for _, key := range cfg.KeyFiles {
			if _, err := fs.Stat(fsys, key); err != nil {
				t.Errorf("%s: key file %s not in fixtures: %v", id, key, err)
			}
		}
	}
}

func TestTypedValidateCorrect(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "app-typed", ds)
	dir := setupWorkspace(t, "app-typed")
	writeArtifact(t, dir, "analytics/metrics.go", `package main

func ActiveUserARPU(d Dataset) float64 {
	active := ActiveUserIDs(d, 30)
	if len(active) == 0 {
		return 0
	}
	return TotalRevenue(d) / float64(len(active))
}
`)
	task := taskByID(t, ds, "active_user_arpu")
	got := requireValid(t, cfg.Validate(dir, task))
	want := dataset.ActiveUserARPU(ds)
	if absf(got-want) > 1e-9 {
		t.Errorf("ARPU = %v, want %v", got, want)
	}
}

func TestTypedValidateVariantName(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "app-typed", ds)
	dir := setupWorkspace(t, "app-typed")
	writeArtifact(t, dir, "analytics/arpu.go", `package main

func GetActiveUserArpu(d Dataset) float64 {
	active := ActiveUserIDs(d, 30)
	if len(active) == 0 {
		return 0
	}
	return TotalRevenue(d) / float64(len(active))
}
`)
	task := taskByID(t, ds, "active_user_arpu")
	got := requireValid(t, cfg.Validate(dir, task))
	want := dataset.ActiveUserARPU(ds)
	if absf(got-want) > 1e-9 {
		t.Errorf("ARPU = %v, want %v", got, want)
	}
}

func TestTypedValidateMissing(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "app-typed", ds)
	dir := setupWorkspace(t, "app-typed")
	res := cfg.Validate(dir, taskByID(t, ds, "active_user_arpu"))
	if res.Valid || res.Kind != sandbox.FailureArtifactNotFound {
		t.Errorf("got kind %q err %q, want artifact_not_found", res.Kind, res.Err)
	}
}

func TestTypedValidateCompileError(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "app-typed", ds)
	dir := setupWorkspace(t, "app-typed")
	writeArtifact(t, dir, "analytics/metrics.go", `package main

func OrgChurnRate(d Dataset) float64 {
	this is not go
}
`)
	res := cfg.Validate(dir, taskByID(t, ds, "org_churn_rate"))
	if res.Valid || res.Kind != sandbox.FailureCompile {
		t.Errorf("got kind %q err %q, want compile_error", res.Kind, res.Err)
	}
}

func TestTypedValidateRuntimeError(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "app-typed", ds)
	dir := setupWorkspace(t, "app-typed")
	writeArtifact(t, dir, "analytics/metrics.go", `package main

func OrgChurnRate(d Dataset) float64 {
	panic("unimplemented")
}
`)
	res := cfg.Validate(dir, taskByID(t, ds, "org_churn_rate"))
	if res.Valid || res.Kind != sandbox.FailureRuntime {
		t.Errorf("got kind %q err %q, want runtime_error", res.Kind, res.Err)
	}
}

func TestTypedValidateWrongType(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "app-typed", ds)
	dir := setupWorkspace(t, "app-typed")
	writeArtifact(t, dir, "analytics/metrics.go", `package main

func OrgChurnRate(d Dataset) string {
	return "one quarter"
}
`)
	res := cfg.Validate(dir, taskByID(t, ds, "org_churn_rate"))
	if res.Valid || res.Kind != sandbox.FailureWrongType {
		t.Errorf("got kind %q err %q, want wrong_type", res.Kind, res.Err)
	}
}

func TestTypedLint(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "app-typed", ds)
	dir := setupWorkspace(t, "app-typed")
	if warnings := cfg.Lint(dir); len(warnings) != 0 {
		t.Errorf("clean fixture tree produced warnings: %v", warnings)
	}
	writeArtifact(t, dir, "analytics/metrics.go", "package main\n\nfunc broken( {\n")
	if warnings := cfg.Lint(dir); len(warnings) == 0 {
		t.Error("broken file produced no lint warnings")
	}
}

func TestORMValidateCorrect(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "app-orm", ds)
	dir := setupWorkspace(t, "app-orm")
	writeArtifact(t, dir, "orm/metrics.go", `package main

func AvgOrgLTV() Query {
	return From(Payments.Table).
		Select(Sum(Payments.Amount) + " / " + CountDistinct(Payments.OrgID)).
		Where(Eq(Payments.Status, "succeeded"))
}
`)
	task := taskByID(t, ds, "avg_org_ltv")
	got := requireValid(t, cfg.Validate(dir, task))
	want := dataset.AvgOrgLTV(ds)
	if absf(got-want) > 1e-6 {
		t.Errorf("LTV = %v, want %v", got, want)
	}
}

func TestORMValidateNotAQuery(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "app-orm", ds)
	dir := setupWorkspace(t, "app-orm")
	writeArtifact(t, dir, "orm/metrics.go", `package main

func AvgOrgLTV() string {
	return "SELECT 1"
}
`)
	res := cfg.Validate(dir, taskByID(t, ds, "avg_org_ltv"))
	if res.Valid {
		t.Fatal("string-returning builder validated")
	}
	if res.Kind != sandbox.FailureRuntime && res.Kind != sandbox.FailureWrongType {
		t.Errorf("got kind %q, want runtime_error or wrong_type", res.Kind)
	}
}

func TestORMValidateBadColumn(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "app-orm", ds)
	dir := setupWorkspace(t, "app-orm")
	writeArtifact(t, dir, "orm/metrics.go", `package main

func AvgOrgLTV() Query {
	return From(Payments.Table).Select(Sum("payments.total_price"))
}
`)
	res := cfg.Validate(dir, taskByID(t, ds, "avg_org_ltv"))
	if res.Valid || res.Kind != sandbox.FailureRuntime {
		t.Fatalf("got kind %q err %q, want runtime_error", res.Kind, res.Err)
	}
	if !strings.Contains(res.Err, "no such column") {
		t.Errorf("error %q should name the missing column", res.Err)
	}
}

func TestWarehouseValidateCorrect(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "warehouse-sql", ds)
	dir := setupWorkspace(t, "warehouse-sql")
	writeArtifact(t, dir, "models/marts/avg_org_ltv.sql",
		"-- Average lifetime value per paying org.\nSELECT AVG(total_revenue) AS avg_ltv\nFROM stg_org_revenue\n")
	task := taskByID(t, ds, "avg_org_ltv")
	got := requireValid(t, cfg.Validate(dir, task))
	want := dataset.AvgOrgLTV(ds)
	if absf(got-want) > 1e-6 {
		t.Errorf("LTV = %v, want %v", got, want)
	}
}

func TestWarehouseValidateARPUOverStaging(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "warehouse-sql", ds)
	dir := setupWorkspace(t, "warehouse-sql")
	writeArtifact(t, dir, "models/marts/active_user_arpu.sql",
		`SELECT (SELECT SUM(amount) FROM stg_payments WHERE status = 'succeeded') * 1.0
     / (SELECT COUNT(*) FROM stg_active_users) AS arpu
`)
	task := taskByID(t, ds, "active_user_arpu")
	got := requireValid(t, cfg.Validate(dir, task))
	want := dataset.ActiveUserARPU(ds)
	if absf(got-want) > 1e-9 {
		t.Errorf("ARPU = %v, want %v", got, want)
	}
}

func TestWarehouseFuzzyFilename(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "warehouse-sql", ds)
	dir := setupWorkspace(t, "warehouse-sql")
	writeArtifact(t, dir, "models/marts/arpu_metric.sql",
		"SELECT (SELECT SUM(amount) FROM stg_payments WHERE status = 'succeeded') * 1.0 / (SELECT COUNT(*) FROM stg_active_users)\n")
	task := taskByID(t, ds, "active_user_arpu")
	if res := cfg.Validate(dir, task); !res.Valid {
		t.Errorf("fuzzy filename rejected: kind=%q err=%q", res.Kind, res.Err)
	}
}

func TestWarehouseValidateMissing(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "warehouse-sql", ds)
	dir := setupWorkspace(t, "warehouse-sql")
	res := cfg.Validate(dir, taskByID(t, ds, "avg_org_ltv"))
	if res.Valid || res.Kind != sandbox.FailureArtifactNotFound {
		t.Errorf("got kind %q err %q, want artifact_not_found", res.Kind, res.Err)
	}
}

func TestWarehouseBrokenModel(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "warehouse-sql", ds)
	dir := setupWorkspace(t, "warehouse-sql")
	writeArtifact(t, dir, "models/marts/org_churn_rate.sql", "SELEC oops FRM nowhere\n")
	res := cfg.Validate(dir, taskByID(t, ds, "org_churn_rate"))
	if res.Valid || res.Kind != sandbox.FailureCompile {
		t.Errorf("got kind %q err %q, want compile_error", res.Kind, res.Err)
	}
}

func TestSemanticValidateCorrect(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "semantic-layer", ds)
	dir := setupWorkspace(t, "semantic-layer")
	writeArtifact(t, dir, "measures/org_churn_rate.yml", `measures:
  - name: org_churn_rate
    description: Churned share of orgs that have users.
    table: stg_org_users
    expression: is_churned
    aggregation: avg
    filters:
      - "user_count > 0"
`)
	task := taskByID(t, ds, "org_churn_rate")
	got := requireValid(t, cfg.Validate(dir, task))
	if absf(got-task.Expected) > task.Tolerance {
		t.Errorf("churn = %v, want %v within %v", got, task.Expected, task.Tolerance)
	}
}

func TestSemanticRatioMeasure(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "semantic-layer", ds)
	dir := setupWorkspace(t, "semantic-layer")
	writeArtifact(t, dir, "measures/active_user_arpu.yml", `measures:
  - name: active_user_arpu
    description: Succeeded revenue per active user.
    type: ratio
    numerator: total_revenue
    denominator: active_users
`)
	task := taskByID(t, ds, "active_user_arpu")
	got := requireValid(t, cfg.Validate(dir, task))
	want := dataset.ActiveUserARPU(ds)
	if absf(got-want) > 1e-9 {
		t.Errorf("ARPU = %v, want %v", got, want)
	}
}

func TestSemanticValidateMissing(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "semantic-layer", ds)
	dir := setupWorkspace(t, "semantic-layer")
	res := cfg.Validate(dir, taskByID(t, ds, "avg_org_ltv"))
	if res.Valid || res.Kind != sandbox.FailureArtifactNotFound {
		t.Fatalf("got kind %q err %q, want artifact_not_found", res.Kind, res.Err)
	}
	if !strings.Contains(res.Err, "total_revenue") {
		t.Errorf("error %q should list the defined measures", res.Err)
	}
}

func TestSemanticBadYAML(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "semantic-layer", ds)
	dir := setupWorkspace(t, "semantic-layer")
	writeArtifact(t, dir, "measures/avg_org_ltv.yml", "measures:\n\t- broken: [\n")
	res := cfg.Validate(dir, taskByID(t, ds, "avg_org_ltv"))
	if res.Valid || res.Kind != sandbox.FailureCompile {
		t.Errorf("got kind %q err %q, want compile_error", res.Kind, res.Err)
	}
}

func TestSemanticUnknownAggregation(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "semantic-layer", ds)
	dir := setupWorkspace(t, "semantic-layer")
	writeArtifact(t, dir, "measures/avg_org_ltv.yml", `measures:
  - name: avg_org_ltv
    table: stg_org_revenue
    expression: total_revenue
    aggregation: median
`)
	res := cfg.Validate(dir, taskByID(t, ds, "avg_org_ltv"))
	if res.Valid || res.Kind != sandbox.FailureCompile {
		t.Errorf("got kind %q err %q, want compile_error", res.Kind, res.Err)
	}
}

func TestSemanticLTVMeasure(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "semantic-layer", ds)
	dir := setupWorkspace(t, "semantic-layer")
	writeArtifact(t, dir, "measures/avg_org_ltv.yml", `measures:
  - name: avg_org_ltv
    table: stg_org_revenue
    expression: total_revenue
    aggregation: avg
`)
	task := taskByID(t, ds, "avg_org_ltv")
	got := requireValid(t, cfg.Validate(dir, task))
	want := dataset.AvgOrgLTV(ds)
	if absf(got-want) > 1e-6 {
		t.Errorf("LTV = %v, want %v", got, want)
	}
}

func TestExplorationAnswers(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "exploration", ds)
	task := taskByID(t, ds, "active_user_arpu")
	tests := []struct {
		name   string
		answer string
		want   float64
	}{
		{"plain number", "123.45", 123.45},
		{"currency and separators", "$1,234.50", 1234.5},
		{"surrounding prose", "the ARPU comes out to 42 per user", 42},
		{"percent", "25%", 0.25},
		{"negative", "-0.5", -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupWorkspace(t, "exploration")
			writeArtifact(t, dir, "answer.txt", tt.answer+"\n")
			got := requireValid(t, cfg.Validate(dir, task))
			if absf(got-tt.want) > 1e-9 {
				t.Errorf("parsed %q as %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func TestExplorationMissingAnswer(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "exploration", ds)
	dir := setupWorkspace(t, "exploration")
	res := cfg.Validate(dir, taskByID(t, ds, "avg_org_ltv"))
	if res.Valid || res.Kind != sandbox.FailureArtifactNotFound {
		t.Errorf("got kind %q err %q, want artifact_not_found", res.Kind, res.Err)
	}
}

func TestExplorationNonNumericAnswer(t *testing.T) {
	ds := dataset.Generate(42)
	cfg := mustConfig(t, "exploration", ds)
	dir := setupWorkspace(t, "exploration")
	writeArtifact(t, dir, "answer.txt", "no idea\n")
	res := cfg.Validate(dir, taskByID(t, ds, "avg_org_ltv"))
	if res.Valid || res.Kind != sandbox.FailureWrongType {
		t.Errorf("got kind %q err %q, want wrong_type", res.Kind, res.Err)
	}
}

func TestValidateNeverPanicsOnGarbage(t *testing.T) {
	ds := dataset.Generate(7)
	task := taskByID(t, ds, "org_churn_rate")
	garbage := map[string]string{
		"app-typed":      "analytics/metrics.go",
		"app-orm":        "orm/metrics.go",
		"warehouse-sql":  "models/marts/org_churn_rate.sql",
		"semantic-layer": "measures/org_churn_rate.yml",
		"exploration":    "answer.txt",
	}
	for id, rel := range garbage {
		cfg := mustConfig(t, id, ds)
		dir := setupWorkspace(t, id)
		writeArtifact(t, dir, rel, "\x00\xff garbage \x00")
		res := cfg.Validate(dir, task)
		if res.Valid {
			t.Errorf("%s: garbage artifact validated", id)
		}
		if res.Kind == sandbox.FailureNone {
			t.Errorf("%s: garbage artifact produced no failure kind", id)
		}
	}
}
