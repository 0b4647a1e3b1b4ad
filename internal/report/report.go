// Package report aggregates result files from a benchmark run directory
// into per-model summaries: pass rates with binomial confidence intervals,
// per-sandbox tool usage, and a plateau curve over accumulated runs.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/archbench/internal/result"
)

type Cell struct {
	Sandbox  string  `json:"sandbox"`
	Task     string  `json:"task"`
	Passes   int     `json:"passes"`
	Total    int     `json:"total"`
	PassRate float64 `json:"passRate"`
	CILow    float64 `json:"ciLow"`
	CIHigh   float64 `json:"ciHigh"`
}

type SandboxStat struct {
	Sandbox        string  `json:"sandbox"`
	Passes         int     `json:"passes"`
	Total          int     `json:"total"`
	PassRate       float64 `json:"passRate"`
	CILow          float64 `json:"ciLow"`
	CIHigh         float64 `json:"ciHigh"`
	AvgReads       float64 `json:"avgReads"`
	AvgUniqueReads float64 `json:"avgUniqueReads"`
	KeyFileRate    float64 `json:"keyFileRate"`
}

type ModelSummary struct {
	Model        string        `json:"model"`
	Runs         int           `json:"runs"`
	Results      int           `json:"results"`
	Passes       int           `json:"passes"`
	PassRate     float64       `json:"passRate"`
	CILow        float64       `json:"ciLow"`
	CIHigh       float64       `json:"ciHigh"`
	PlateauStd   []float64     `json:"plateauStd,omitempty"`
	InputTokens  int           `json:"inputTokens"`
	OutputTokens int           `json:"outputTokens"`
	CostUSD      float64       `json:"costUSD"`
	Cells        []Cell        `json:"cells"`
	Sandboxes    []SandboxStat `json:"sandboxes"`
}

// Generate reads every result file under runDir and writes a summary report.
func Generate(runDir, format string, w io.Writer) error {
	runs, err := collectRuns(runDir)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("no result files in %s", runDir)
	}

	summaries := aggregate(runs)

	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

func collectRuns(runDir string) ([]*result.RunFile, error) {
	paths, err := result.ListRunFiles(runDir)
	if err != nil {
		return nil, err
	}
	var runs []*result.RunFile
	for _, path := range paths {
		rf, err := result.ReadRunFile(path)
		if err != nil {
			continue
		}
		runs = append(runs, rf)
	}
	return runs, nil
}

func aggregate(runs []*result.RunFile) []ModelSummary {
	type cellAccum struct {
		passes, total int
	}
	type sandboxAccum struct {
		passes, total int
		reads         int
		uniqueReads   int
		coverage      float64
	}
	type modelAccum struct {
		runs, results, passes     int
		inputTokens, outputTokens int
		cost                      float64
		perRunPasses              []int
		cells                     map[[2]string]*cellAccum
		sandboxes                 map[string]*sandboxAccum
	}
	byModel := map[string]*modelAccum{}

	for _, rf := range runs {
		a, ok := byModel[rf.Metadata.Model]
		if !ok {
			a = &modelAccum{
				cells:     map[[2]string]*cellAccum{},
				sandboxes: map[string]*sandboxAccum{},
			}
			byModel[rf.Metadata.Model] = a
		}
		a.runs++
		a.inputTokens += rf.Metadata.InputTokens
		a.outputTokens += rf.Metadata.OutputTokens
		a.cost += rf.Metadata.EstimatedCostUSD

		runPasses := 0
		for _, res := range rf.Results {
			a.results++
			if res.Pass {
				a.passes++
				runPasses++
			}

			key := [2]string{res.Sandbox, res.Task.ID}
			c, ok := a.cells[key]
			if !ok {
				c = &cellAccum{}
				a.cells[key] = c
			}
			c.total++
			if res.Pass {
				c.passes++
			}

			s, ok := a.sandboxes[res.Sandbox]
			if !ok {
				s = &sandboxAccum{}
				a.sandboxes[res.Sandbox] = s
			}
			s.total++
			if res.Pass {
				s.passes++
			}
			s.reads += len(res.ToolUsage.ReadFiles)
			s.uniqueReads += uniqueCount(res.ToolUsage.ReadFiles)
			s.coverage += res.Rubric.ToolCoverage
		}
		a.perRunPasses = append(a.perRunPasses, runPasses)
	}

	var summaries []ModelSummary
	for model, a := range byModel {
		sum := ModelSummary{
			Model:        model,
			Runs:         a.runs,
			Results:      a.results,
			Passes:       a.passes,
			InputTokens:  a.inputTokens,
			OutputTokens: a.outputTokens,
			CostUSD:      a.cost,
		}
		sum.PassRate, sum.CILow, sum.CIHigh = rateCI(a.passes, a.results)
		if a.runs > 1 {
			sum.PlateauStd = runningStd(a.perRunPasses)
		}
		for key, c := range a.cells {
			cell := Cell{Sandbox: key[0], Task: key[1], Passes: c.passes, Total: c.total}
			cell.PassRate, cell.CILow, cell.CIHigh = rateCI(c.passes, c.total)
			sum.Cells = append(sum.Cells, cell)
		}
		sort.Slice(sum.Cells, func(i, j int) bool {
			if sum.Cells[i].Sandbox != sum.Cells[j].Sandbox {
				return sum.Cells[i].Sandbox < sum.Cells[j].Sandbox
			}
			return sum.Cells[i].Task < sum.Cells[j].Task
		})
		for id, s := range a.sandboxes {
			stat := SandboxStat{
				Sandbox:        id,
				Passes:         s.passes,
				Total:          s.total,
				AvgReads:       float64(s.reads) / float64(s.total),
				AvgUniqueReads: float64(s.uniqueReads) / float64(s.total),
				KeyFileRate:    s.coverage / float64(s.total),
			}
			stat.PassRate, stat.CILow, stat.CIHigh = rateCI(s.passes, s.total)
			sum.Sandboxes = append(sum.Sandboxes, stat)
		}
		sort.Slice(sum.Sandboxes, func(i, j int) bool {
			return sum.Sandboxes[i].Sandbox < sum.Sandboxes[j].Sandbox
		})
		summaries = append(summaries, sum)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Model < summaries[j].Model
	})
	return summaries
}

// rateCI computes a 95% normal-approximation binomial interval, clamped to
// [0, 1].
func rateCI(passes, total int) (rate, low, high float64) {
	if total == 0 {
		return 0, 0, 0
	}
	rate = float64(passes) / float64(total)
	se := math.Sqrt(rate * (1 - rate) / float64(total))
	low = math.Max(0, rate-1.96*se)
	high = math.Min(1, rate+1.96*se)
	return rate, low, high
}

// runningStd returns the population standard deviation of per-run pass
// totals after each successive run. A flattening tail means more runs are
// no longer moving the estimate.
func runningStd(totals []int) []float64 {
	out := make([]float64, len(totals))
	for i := range totals {
		n := float64(i + 1)
		var mean float64
		for _, t := range totals[:i+1] {
			mean += float64(t)
		}
		mean /= n
		var variance float64
		for _, t := range totals[:i+1] {
			d := float64(t) - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / n)
	}
	return out
}

func uniqueCount(items []string) int {
	seen := map[string]bool{}
	for _, it := range items {
		seen[it] = true
	}
	return len(seen)
}

func writeTable(summaries []ModelSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\truns %d\tresults %d\tpass %.0f%% [%.0f%%, %.0f%%]\ttokens %d/%d\t$%.2f\n",
			s.Model, s.Runs, s.Results, s.PassRate*100, s.CILow*100, s.CIHigh*100,
			s.InputTokens, s.OutputTokens, s.CostUSD)
		fmt.Fprintln(tw, strings.Repeat("-", 80))
		fmt.Fprintln(tw, "SANDBOX\tTASK\tPASSES\tRATE\t95% CI")
		for _, c := range s.Cells {
			fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%.0f%%\t[%.0f%%, %.0f%%]\n",
				c.Sandbox, c.Task, c.Passes, c.Total, c.PassRate*100, c.CILow*100, c.CIHigh*100)
		}
		fmt.Fprintln(tw, "\nSANDBOX\tRATE\tAVG READS\tUNIQUE\tKEY FILE READS")
		for _, sb := range s.Sandboxes {
			fmt.Fprintf(tw, "%s\t%.0f%%\t%.1f\t%.1f\t%.0f%%\n",
				sb.Sandbox, sb.PassRate*100, sb.AvgReads, sb.AvgUniqueReads, sb.KeyFileRate*100)
		}
		if len(s.PlateauStd) > 0 {
			fmt.Fprintf(tw, "plateau std by run:")
			for _, v := range s.PlateauStd {
				fmt.Fprintf(tw, " %.2f", v)
			}
			fmt.Fprintln(tw)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func writeMarkdown(summaries []ModelSummary, w io.Writer) error {
	for _, s := range summaries {
		fmt.Fprintf(w, "## %s\n\n", s.Model)
		fmt.Fprintf(w, "%d runs, %d results, pass rate %.0f%% [%.0f%%, %.0f%%], tokens %d/%d, cost $%.2f\n\n",
			s.Runs, s.Results, s.PassRate*100, s.CILow*100, s.CIHigh*100,
			s.InputTokens, s.OutputTokens, s.CostUSD)
		fmt.Fprintln(w, "| Sandbox | Task | Passes | Rate | 95% CI |")
		fmt.Fprintln(w, "|---|---|---|---|---|")
		for _, c := range s.Cells {
			fmt.Fprintf(w, "| %s | %s | %d/%d | %.0f%% | [%.0f%%, %.0f%%] |\n",
				c.Sandbox, c.Task, c.Passes, c.Total, c.PassRate*100, c.CILow*100, c.CIHigh*100)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Sandbox | Rate | Avg Reads | Unique | Key File Reads |")
		fmt.Fprintln(w, "|---|---|---|---|---|")
		for _, sb := range s.Sandboxes {
			fmt.Fprintf(w, "| %s | %.0f%% | %.1f | %.1f | %.0f%% |\n",
				sb.Sandbox, sb.PassRate*100, sb.AvgReads, sb.AvgUniqueReads, sb.KeyFileRate*100)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func writeJSON(summaries []ModelSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
