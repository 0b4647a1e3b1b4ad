// Package scoring turns a validation outcome into the benchmark verdict: a
// hard pass/fail against the ground truth plus an advisory rubric. Only pass
// feeds the aggregate rates; the rubric exists to explain failures.
package scoring

import (
	"strings"

	"github.com/signalnine/archbench/internal/dataset"
	"github.com/signalnine/archbench/internal/sandbox"
)

// Rubric grades one attempt on four axes, each in [0, 1]. Overall is their
// mean. Persisted alongside results, so fields marshal in camelCase.
type Rubric struct {
	RuntimeSuccess    float64 `json:"runtimeSuccess"`
	OutputCorrectness float64 `json:"outputCorrectness"`
	SchemaAdherence   float64 `json:"schemaAdherence"`
	ToolCoverage      float64 `json:"toolCoverage"`
	Overall           float64 `json:"overall"`
}

// Pass applies the tolerance gate. A nil actual never passes.
func Pass(actual *float64, expected, tolerance float64) bool {
	if actual == nil {
		return false
	}
	diff := *actual - expected
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// schemaErrs are the substrings that mark a failure as schema confusion
// rather than logic error.
var schemaErrs = []string{
	"no such column",
	"no such table",
	"does not exist",
	"unknown column",
	"has no field or method",
}

// Score grades one attempt. readFiles is the executor's read trace and
// keyFiles the architecture's files an agent should have consulted.
func Score(res sandbox.ValidationResult, task dataset.Task, readFiles, keyFiles []string) (bool, Rubric) {
	pass := res.Valid && Pass(res.Actual, task.Expected, task.Tolerance)

	var r Rubric
	// executed: the artifact ran end to end, even if its output was unusable
	if res.Valid || res.Kind == sandbox.FailureWrongType {
		r.RuntimeSuccess = 1
	}
	if pass {
		r.OutputCorrectness = 1
	}
	r.SchemaAdherence = 1
	lower := strings.ToLower(res.Err)
	for _, s := range schemaErrs {
		if strings.Contains(lower, s) {
			r.SchemaAdherence = 0
			break
		}
	}
	r.ToolCoverage = coverage(readFiles, keyFiles)
	r.Overall = (r.RuntimeSuccess + r.OutputCorrectness + r.SchemaAdherence + r.ToolCoverage) / 4
	return pass, r
}

// coverage is the fraction of key files that appear in the read trace.
// Architectures that declare no key files score zero.
func coverage(readFiles, keyFiles []string) float64 {
	if len(keyFiles) == 0 {
		return 0
	}
	read := make(map[string]bool, len(readFiles))
	for _, f := range readFiles {
		read[f] = true
	}
	hit := 0
	for _, k := range keyFiles {
		if read[k] {
			hit++
		}
	}
	return float64(hit) / float64(len(keyFiles))
}
