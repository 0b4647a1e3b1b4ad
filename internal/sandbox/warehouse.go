package sandbox

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/signalnine/archbench/internal/dataset"
)

const warehouseSystemPrompt = `You are working in a SQL warehouse project. Models under models/ are
registered as SQLite views named after their file; models/staging/ wraps
the raw tables and models/marts/ holds business metrics built on staging.
models/README.md documents the raw schema and the layering rules.

Available tools: read_file(path), write_file(path, content),
list_files(path), done.

` + protocolHelp + `

Add new metrics as one .sql file under models/marts/, selecting from
staging views. You cannot execute SQL here; the warehouse runs models
after you finish. When the model file is written, reply with
<tool>done</tool>.`

func newWarehouse(ds *dataset.Dataset) *Config {
	cfg := &Config{
		ID: "warehouse-sql",
		ContextFiles: []string{
			"models/README.md",
			"models/staging/stg_organizations.sql",
			"models/staging/stg_users.sql",
			"models/staging/stg_subscriptions.sql",
			"models/staging/stg_payments.sql",
			"models/staging/stg_api_usage.sql",
		},
		TargetFile: "models/marts/<task_id>.sql",
		KeyFiles: []string{
			"models/staging/stg_organizations.sql",
			"models/staging/stg_users.sql",
			"models/staging/stg_payments.sql",
			"models/staging/stg_api_usage.sql",
		},
		Tools:        editorTools,
		SystemPrompt: warehouseSystemPrompt,
	}
	cfg.TaskPrompt = func(task dataset.Task) string {
		return fmt.Sprintf("%s\n\nWrite this as models/marts/%s: a single SELECT returning exactly one\nrow with one numeric column. Finish with <tool>done</tool>.",
			task.Description, task.FileName)
	}
	cfg.Validate = func(workspaceDir string, task dataset.Task) ValidationResult {
		return validateWarehouse(workspaceDir, task, ds)
	}
	return cfg
}

// validateWarehouse loads a fresh store, registers every model as a view,
// and selects from the discovered mart.
func validateWarehouse(workspaceDir string, task dataset.Task, ds *dataset.Dataset) ValidationResult {
	path, err := findSQLArtifact(workspaceDir, "models", task.FileName, task.Keywords, stockNames("warehouse-sql"))
	if err != nil {
		return invalid(FailureArtifactNotFound, "%v", err)
	}
	db, err := openMemoryDB(ds)
	if err != nil {
		return invalid(FailureRuntime, "loading store: %v", err)
	}
	defer db.Close()
	if err := registerModels(db, workspaceDir, "models"); err != nil {
		return invalid(FailureCompile, "%v", err)
	}
	view := strings.TrimSuffix(filepath.Base(path), ".sql")
	return queryScalar(db, fmt.Sprintf("SELECT * FROM %q", view))
}

// registerModels creates one view per .sql file under root, named after the
// file. Files may reference each other in any order: registration retries
// failures in passes until a pass makes no progress. SQLite resolves view
// bodies lazily, so only a statement broken at parse time fails here.
func registerModels(db *sql.DB, workspaceDir, root string) error {
	type model struct {
		name, body string
	}
	var pending []model
	err := filepath.WalkDir(filepath.Join(workspaceDir, root), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".sql") {
			return err
		}
		body, rerr := os.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		pending = append(pending, model{
			name: strings.TrimSuffix(d.Name(), ".sql"),
			body: strings.TrimSpace(string(body)),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("collecting models under %s: %w", root, err)
	}
	for len(pending) > 0 {
		var failed []model
		var lastErr error
		for _, m := range pending {
			body := strings.TrimSpace(strings.TrimSuffix(m.body, ";"))
			stmt := fmt.Sprintf("CREATE VIEW %q AS %s", m.name, body)
			if _, err := db.Exec(stmt); err != nil {
				failed = append(failed, m)
				lastErr = fmt.Errorf("model %s: %w", m.name, err)
			}
		}
		if len(failed) == len(pending) {
			return lastErr
		}
		pending = failed
	}
	return nil
}
