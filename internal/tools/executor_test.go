package tools_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/archbench/internal/config"
	"github.com/signalnine/archbench/internal/dataset"
	"github.com/signalnine/archbench/internal/protocol"
	"github.com/signalnine/archbench/internal/tools"
)

var allKinds = []protocol.Kind{
	protocol.KindReadFile, protocol.KindWriteFile, protocol.KindListFiles,
	protocol.KindBash, protocol.KindQuery, protocol.KindSchema,
	protocol.KindSample, protocol.KindTables, protocol.KindAnswer,
	protocol.KindDone,
}

func testLimits() config.Limits {
	return config.Limits{
		MaxTurns:       12,
		Window:         40,
		ObservationCap: 12000,
		BashTimeoutS:   20,
		QueryRowCap:    200,
		SampleRows:     5,
	}
}

func newExecutor(t *testing.T) *tools.Executor {
	t.Helper()
	return tools.New(t.TempDir(), testLimits(), allKinds)
}

func exec1(t *testing.T, e *tools.Executor, text string) (string, bool) {
	t.Helper()
	call := protocol.Parse(text)
	if call == nil {
		t.Fatalf("no call parsed from %q", text)
	}
	return e.Execute(context.Background(), call)
}

func TestWriteThenRead(t *testing.T) {
	e := newExecutor(t)
	obs, terminal := exec1(t, e, "<tool>write_file</tool><path>analytics/metrics.go</path><content>package analytics</content>")
	if terminal {
		t.Error("write_file must not be terminal")
	}
	if !strings.Contains(obs, "analytics/metrics.go") {
		t.Errorf("write observation: %q", obs)
	}
	obs, _ = exec1(t, e, "<tool>read_file</tool><path>analytics/metrics.go</path>")
	if obs != "package analytics" {
		t.Errorf("read observation: %q", obs)
	}
	if len(e.Trace.Writes) != 1 || e.Trace.Writes[0] != "analytics/metrics.go" {
		t.Errorf("writes trace: %v", e.Trace.Writes)
	}
	if len(e.Trace.ReadFiles) != 1 || e.Trace.ReadFiles[0] != "analytics/metrics.go" {
		t.Errorf("reads trace: %v", e.Trace.ReadFiles)
	}
}

func TestReadFileOnDirectory(t *testing.T) {
	e := newExecutor(t)
	if err := os.MkdirAll(filepath.Join(e.WorkspaceDir, "models"), 0o755); err != nil {
		t.Fatal(err)
	}
	obs, terminal := exec1(t, e, "<tool>read_file</tool><path>models</path>")
	if terminal {
		t.Error("read_file must not be terminal")
	}
	if !strings.Contains(obs, "error") || !strings.Contains(obs, "directory") {
		t.Errorf("expected descriptive directory error, got %q", obs)
	}
	if len(e.Trace.ReadFiles) != 0 {
		t.Errorf("failed read must not be traced: %v", e.Trace.ReadFiles)
	}
}

func TestReadFileMissing(t *testing.T) {
	e := newExecutor(t)
	obs, _ := exec1(t, e, "<tool>read_file</tool><path>nope.txt</path>")
	if !strings.Contains(obs, "no such file") {
		t.Errorf("expected not-found error, got %q", obs)
	}
}

func TestPathEscapeRejected(t *testing.T) {
	e := newExecutor(t)
	obs, _ := exec1(t, e, "<tool>read_file</tool><path>../../etc/passwd</path>")
	if !strings.Contains(obs, "escapes the workspace") {
		t.Errorf("expected escape rejection, got %q", obs)
	}
	obs, _ = exec1(t, e, "<tool>write_file</tool><path>/etc/cron.d/x</path><content>x</content>")
	if !strings.Contains(obs, "escapes the workspace") {
		t.Errorf("expected escape rejection for absolute path, got %q", obs)
	}
}

func TestListFilesHidesDotfiles(t *testing.T) {
	e := newExecutor(t)
	for _, name := range []string{"visible.txt", ".hidden"} {
		if err := os.WriteFile(filepath.Join(e.WorkspaceDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(e.WorkspaceDir, "models"), 0o755); err != nil {
		t.Fatal(err)
	}
	obs, _ := exec1(t, e, "<tool>list_files</tool>")
	if strings.Contains(obs, ".hidden") {
		t.Errorf("hidden file listed: %q", obs)
	}
	if !strings.Contains(obs, "visible.txt") {
		t.Errorf("visible file missing: %q", obs)
	}
	if !strings.Contains(obs, "models/") {
		t.Errorf("directory not suffixed: %q", obs)
	}
}

func TestUnknownTool(t *testing.T) {
	e := newExecutor(t)
	obs, terminal := exec1(t, e, "<tool>format_disk</tool>")
	if terminal {
		t.Error("unknown tool must not be terminal")
	}
	if !strings.Contains(obs, "unknown tool") || !strings.Contains(obs, "format_disk") {
		t.Errorf("expected unknown-tool error naming the tool, got %q", obs)
	}
}

func TestToolNotInSandbox(t *testing.T) {
	e := tools.New(t.TempDir(), testLimits(), []protocol.Kind{protocol.KindReadFile, protocol.KindDone})
	obs, terminal := exec1(t, e, "<tool>bash</tool><command>ls</command>")
	if terminal {
		t.Error("rejected tool must not be terminal")
	}
	if !strings.Contains(obs, "not available in this sandbox") {
		t.Errorf("expected availability error, got %q", obs)
	}
}

func TestBashAllowList(t *testing.T) {
	e := newExecutor(t)
	tests := []struct {
		command string
		allowed bool
	}{
		{"echo hello", true},
		{"wc -l data/payments.csv", true},
		{"rm -rf /", false},
		{"python3 -c 'print(1)'", false},
		{"curl http://example.com", false},
	}
	for _, tt := range tests {
		obs, _ := exec1(t, e, "<tool>bash</tool><command>"+tt.command+"</command>")
		rejected := strings.Contains(obs, "not allowed")
		if tt.allowed && rejected {
			t.Errorf("command %q rejected: %q", tt.command, obs)
		}
		if !tt.allowed && !rejected {
			t.Errorf("command %q not rejected: %q", tt.command, obs)
		}
	}
}

func TestBashEcho(t *testing.T) {
	e := newExecutor(t)
	obs, _ := exec1(t, e, "<tool>bash</tool><command>echo one two three | wc -w</command>")
	if strings.TrimSpace(obs) != "3" {
		t.Errorf("bash output: %q", obs)
	}
	if len(e.Trace.Commands) != 1 {
		t.Errorf("commands trace: %v", e.Trace.Commands)
	}
}

func TestBashTimeout(t *testing.T) {
	e := newExecutor(t)
	e.Limits.BashTimeoutS = 1
	if err := os.WriteFile(filepath.Join(e.WorkspaceDir, "f.txt"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	obs, terminal := exec1(t, e, "<tool>bash</tool><command>tail -f f.txt</command>")
	if terminal {
		t.Error("timed-out command must not be terminal")
	}
	if !strings.Contains(obs, "timed out") {
		t.Errorf("expected timeout observation, got %q", obs)
	}
}

func queryExecutor(t *testing.T) *tools.Executor {
	t.Helper()
	e := newExecutor(t)
	db, err := dataset.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := dataset.LoadDB(db, dataset.Generate(42)); err != nil {
		t.Fatalf("LoadDB: %v", err)
	}
	e.DB = db
	return e
}

func TestQuerySelect(t *testing.T) {
	e := queryExecutor(t)
	obs, _ := exec1(t, e, "<tool>query</tool><sql>SELECT COUNT(*) AS n FROM organizations</sql>")
	if !strings.Contains(obs, "n") || !strings.Contains(obs, "(1 rows)") {
		t.Errorf("query observation: %q", obs)
	}
	if len(e.Trace.Queries) != 1 {
		t.Errorf("queries trace: %v", e.Trace.Queries)
	}
}

func TestQueryRejectsWrites(t *testing.T) {
	e := queryExecutor(t)
	for _, stmt := range []string{
		"INSERT INTO organizations VALUES ('x', 'x', '2025-01-01', NULL)",
		"DROP TABLE payments",
		"UPDATE payments SET amount = 0",
	} {
		obs, _ := exec1(t, e, "<tool>query</tool><sql>"+stmt+"</sql>")
		if !strings.Contains(obs, "read-only") {
			t.Errorf("statement %q not rejected: %q", stmt, obs)
		}
	}
}

func TestQueryWithCTE(t *testing.T) {
	e := queryExecutor(t)
	obs, _ := exec1(t, e, "<tool>query</tool><sql>WITH paid AS (SELECT * FROM payments WHERE status = 'succeeded') SELECT COUNT(*) FROM paid</sql>")
	if strings.Contains(obs, "error") {
		t.Errorf("CTE query failed: %q", obs)
	}
}

func TestQueryRowCap(t *testing.T) {
	e := queryExecutor(t)
	e.Limits.QueryRowCap = 3
	obs, _ := exec1(t, e, "<tool>query</tool><sql>SELECT id FROM payments</sql>")
	if !strings.Contains(obs, "(stopped at 3 rows)") {
		t.Errorf("row cap not applied: %q", obs)
	}
}

func TestSchemaAndTables(t *testing.T) {
	e := queryExecutor(t)
	obs, _ := exec1(t, e, "<tool>schema</tool>")
	if !strings.Contains(obs, "CREATE TABLE") || !strings.Contains(obs, "payments") {
		t.Errorf("schema observation: %q", obs)
	}
	obs, _ = exec1(t, e, "<tool>tables</tool>")
	for _, table := range []string{"organizations", "users", "subscriptions", "payments", "api_usage"} {
		if !strings.Contains(obs, table) {
			t.Errorf("tables observation missing %s: %q", table, obs)
		}
	}
}

func TestSampleUnknownTable(t *testing.T) {
	e := queryExecutor(t)
	obs, _ := exec1(t, e, "<tool>sample</tool><table>invoices</table>")
	if !strings.Contains(obs, "no such table") {
		t.Errorf("expected unknown-table error, got %q", obs)
	}
}

func TestSample(t *testing.T) {
	e := queryExecutor(t)
	obs, _ := exec1(t, e, "<tool>sample</tool><table>payments</table>")
	if !strings.Contains(obs, "amount") {
		t.Errorf("sample observation missing header: %q", obs)
	}
}

func TestAnswerWritesFileAndTerminates(t *testing.T) {
	e := newExecutor(t)
	obs, terminal := exec1(t, e, "<tool>answer</tool><value>1234.5</value>")
	if !terminal {
		t.Error("answer must be terminal")
	}
	if !strings.Contains(obs, "1234.5") {
		t.Errorf("answer observation: %q", obs)
	}
	data, err := os.ReadFile(filepath.Join(e.WorkspaceDir, tools.AnswerFile))
	if err != nil {
		t.Fatalf("reading answer file: %v", err)
	}
	if strings.TrimSpace(string(data)) != "1234.5" {
		t.Errorf("answer file: %q", data)
	}
}

func TestAnswerWithoutValue(t *testing.T) {
	e := newExecutor(t)
	obs, terminal := exec1(t, e, "<tool>answer</tool>")
	if terminal {
		t.Error("answer without a value must not terminate the run")
	}
	if !strings.Contains(obs, "error") {
		t.Errorf("expected error observation, got %q", obs)
	}
}

func TestDoneIsTerminal(t *testing.T) {
	e := newExecutor(t)
	_, terminal := exec1(t, e, "<tool>done</tool>")
	if !terminal {
		t.Error("done must be terminal")
	}
}

func TestObservationTruncated(t *testing.T) {
	e := newExecutor(t)
	e.Limits.ObservationCap = 50
	big := strings.Repeat("x", 500)
	if err := os.WriteFile(filepath.Join(e.WorkspaceDir, "big.txt"), []byte(big), 0o644); err != nil {
		t.Fatal(err)
	}
	obs, _ := exec1(t, e, "<tool>read_file</tool><path>big.txt</path>")
	if !strings.HasSuffix(obs, "...[truncated]") {
		t.Errorf("expected truncation marker, got tail %q", obs[len(obs)-20:])
	}
	if len(obs) > 50+len("\n...[truncated]") {
		t.Errorf("observation too long: %d chars", len(obs))
	}
}

func TestToolCounts(t *testing.T) {
	e := newExecutor(t)
	exec1(t, e, "<tool>list_files</tool>")
	exec1(t, e, "<tool>list_files</tool>")
	exec1(t, e, "<tool>done</tool>")
	if e.Trace.Counts["list_files"] != 2 {
		t.Errorf("list_files count: %d", e.Trace.Counts["list_files"])
	}
	if e.Trace.Counts["done"] != 1 {
		t.Errorf("done count: %d", e.Trace.Counts["done"])
	}
}
