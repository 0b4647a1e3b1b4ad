package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/signalnine/archbench/internal/dataset"
	"github.com/signalnine/archbench/internal/protocol"
	"github.com/signalnine/archbench/internal/tools"
)

const explorationSystemPrompt = `You are exploring raw data exports to answer an analytics question. The
workspace holds data/ with dataset.json, one CSV per table, and a SQLite
database data.db; data/README.md describes all of them.

Available tools:
  read_file(path), list_files(path)
  bash(command)       allow-listed shell pipeline, runs in the workspace
  query(sql)          read-only SELECT against data.db
  schema(), tables()  inspect the database structure
  sample(table)       first rows of a table
  answer(value)       submit the final numeric answer

` + protocolHelp + `

Parameters use sibling tags: <path>, <content>, <command>, <sql>, <table>,
<value>. Work out the number with as few steps as you can, then submit
exactly one final answer:

  <tool>answer</tool><value>123.45</value>

Submitting an answer ends the session.`

func newExploration(ds *dataset.Dataset) *Config {
	cfg := &Config{
		ID:           "exploration",
		ContextFiles: []string{"data/README.md"},
		TargetFile:   tools.AnswerFile,
		Tools: []protocol.Kind{
			protocol.KindReadFile,
			protocol.KindListFiles,
			protocol.KindBash,
			protocol.KindQuery,
			protocol.KindSchema,
			protocol.KindTables,
			protocol.KindSample,
			protocol.KindAnswer,
			protocol.KindDone,
		},
		SystemPrompt: explorationSystemPrompt,
		NeedsDB:      true,
		NeedsCSV:     true,
	}
	cfg.TaskPrompt = func(task dataset.Task) string {
		return fmt.Sprintf("%s\n\nSubmit the numeric value with the answer tool.", task.Description)
	}
	cfg.Validate = func(workspaceDir string, task dataset.Task) ValidationResult {
		return validateExploration(workspaceDir)
	}
	return cfg
}

func validateExploration(workspaceDir string) ValidationResult {
	raw, err := os.ReadFile(filepath.Join(workspaceDir, tools.AnswerFile))
	if err != nil {
		return invalid(FailureArtifactNotFound, "no answer submitted")
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return invalid(FailureArtifactNotFound, "empty answer")
	}
	f, ok := parseAnswer(text)
	if !ok {
		return invalid(FailureWrongType, "answer %q is not numeric", text)
	}
	return succeed(f)
}

var numberPattern = regexp.MustCompile(`[-+]?[0-9]+(\.[0-9]+)?([eE][-+]?[0-9]+)?`)

// parseAnswer pulls the first number out of free-form answer text,
// tolerating currency symbols, thousands separators, and a percent suffix.
func parseAnswer(text string) (float64, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(text)
	loc := numberPattern.FindStringIndex(cleaned)
	if loc == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned[loc[0]:loc[1]], 64)
	if err != nil {
		return 0, false
	}
	if loc[1] < len(cleaned) && cleaned[loc[1]] == '%' {
		f /= 100
	}
	return f, true
}
