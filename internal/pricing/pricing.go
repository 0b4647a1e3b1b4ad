// Package pricing estimates run cost from token counts. A built-in table
// covers the stock models; a YAML file can override it for new models or
// price changes.
package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelPricing is dollars per 1K tokens.
type ModelPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

type Table struct {
	Models map[string]ModelPricing
}

// Default returns the built-in price table.
func Default() *Table {
	return &Table{Models: map[string]ModelPricing{
		"claude-3-5-haiku-20241022": {Input: 0.0008, Output: 0.004},
		"claude-sonnet-4-20250514":  {Input: 0.003, Output: 0.015},
		"claude-opus-4-5":           {Input: 0.005, Output: 0.025},
	}}
}

// Load reads a model -> {input, output} YAML table.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pricing file: %w", err)
	}
	var models map[string]ModelPricing
	if err := yaml.Unmarshal(data, &models); err != nil {
		return nil, fmt.Errorf("parsing pricing file: %w", err)
	}
	return &Table{Models: models}, nil
}

// Cost estimates the dollar cost of a request. Unknown models cost zero
// rather than failing: cost is advisory, never load-bearing.
func (t *Table) Cost(model string, inputTokens, outputTokens int) float64 {
	if t == nil || t.Models == nil {
		return 0
	}
	p, ok := t.Models[model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1000.0)*p.Input + (float64(outputTokens)/1000.0)*p.Output
}
