// Package result defines the persisted run artifact and its storage layout.
// One JSON file holds everything a single (model, run) produced; field names
// are camelCase because downstream analysis scripts consume these files.
package result

import (
	"time"

	"github.com/signalnine/archbench/internal/scoring"
)

// TaskInfo pins what the agent was asked and what counted as correct, so a
// result file is interpretable without regenerating the dataset.
type TaskInfo struct {
	ID        string  `json:"id"`
	Expected  float64 `json:"expected"`
	Tolerance float64 `json:"tolerance"`
}

// ToolUsage is the agent's traffic during one attempt.
type ToolUsage struct {
	ReadFiles []string       `json:"readFiles"`
	Writes    []string       `json:"writes,omitempty"`
	Commands  []string       `json:"commands,omitempty"`
	Queries   []string       `json:"queries,omitempty"`
	Calls     map[string]int `json:"calls,omitempty"`
}

// BenchmarkResult is one (sandbox, task) attempt.
type BenchmarkResult struct {
	Sandbox          string         `json:"sandbox"`
	Task             TaskInfo       `json:"task"`
	Pass             bool           `json:"pass"`
	Actual           *float64       `json:"actual"`
	FailureKind      string         `json:"failureKind,omitempty"`
	Error            string         `json:"error,omitempty"`
	Turns            int            `json:"turns"`
	MaxTurnsExceeded bool           `json:"maxTurnsExceeded,omitempty"`
	DurationS        float64        `json:"durationS"`
	Rubric           scoring.Rubric `json:"rubric"`
	ToolUsage        ToolUsage      `json:"toolUsage"`
	Warnings         []string       `json:"warnings,omitempty"`
}

// Metadata describes the whole (model, run) slice of the matrix.
type Metadata struct {
	Model            string    `json:"model"`
	Sandboxes        []string  `json:"sandboxes"`
	Tasks            []string  `json:"tasks"`
	RunIndex         int       `json:"runIndex"`
	Perturbed        bool      `json:"perturbed"`
	Seed             int64     `json:"seed"`
	MaxTurns         int       `json:"maxTurns"`
	StartedAt        time.Time `json:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt"`
	InputTokens      int       `json:"inputTokens"`
	OutputTokens     int       `json:"outputTokens"`
	EstimatedCostUSD float64   `json:"estimatedCostUSD"`
}

type RunFile struct {
	Metadata Metadata          `json:"metadata"`
	Results  []BenchmarkResult `json:"results"`
}
