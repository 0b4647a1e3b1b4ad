// Package runner executes the benchmark matrix: every (sandbox, task) pair
// for each model and run index, under a bounded worker pool, writing one
// result file per (model, run). Attempt-level failures become failing
// results; only setup that makes a whole run impossible returns an error.
package runner

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/signalnine/archbench/internal/agent"
	"github.com/signalnine/archbench/internal/config"
	"github.com/signalnine/archbench/internal/dataset"
	"github.com/signalnine/archbench/internal/gateway"
	"github.com/signalnine/archbench/internal/pricing"
	"github.com/signalnine/archbench/internal/result"
	"github.com/signalnine/archbench/internal/sandbox"
	"github.com/signalnine/archbench/internal/scoring"
	"github.com/signalnine/archbench/internal/tools"
	"github.com/signalnine/archbench/internal/workspace"
)

type Options struct {
	Config    *config.Config
	Caller    agent.Caller
	Models    []string
	Sandboxes []string
	Tasks     []string
	Runs      int
	Perturb   bool
	RunDir    string
	Pricing   *pricing.Table
}

// Run walks the matrix run by run, model by model. A result file that
// already exists is skipped, so an interrupted benchmark resumes where it
// stopped.
func Run(ctx context.Context, opts *Options) error {
	for runIndex := 0; runIndex < opts.Runs; runIndex++ {
		seed := opts.Config.Seed
		if opts.Perturb {
			seed = dataset.DeriveSeed(opts.Config.Seed, runIndex)
		}
		ds := dataset.Generate(seed)
		tasks := dataset.FilterTasks(dataset.Tasks(ds), opts.Tasks)
		if len(tasks) == 0 {
			return fmt.Errorf("no tasks match filter %v", opts.Tasks)
		}
		configs := make([]*sandbox.Config, 0, len(opts.Sandboxes))
		for _, id := range opts.Sandboxes {
			sb, err := sandbox.New(id, ds)
			if err != nil {
				return err
			}
			configs = append(configs, sb)
		}
		for _, model := range opts.Models {
			if err := opts.runModel(ctx, model, runIndex, seed, ds, configs, tasks); err != nil {
				return fmt.Errorf("%s run %d: %w", model, runIndex+1, err)
			}
		}
	}
	return nil
}

func (o *Options) runModel(ctx context.Context, model string, runIndex int, seed int64, ds *dataset.Dataset, configs []*sandbox.Config, tasks []dataset.Task) error {
	outPath := result.RunFilePath(o.RunDir, model, runIndex)
	if _, err := os.Stat(outPath); err == nil {
		fmt.Printf("%s exists, skipping\n", filepath.Base(outPath))
		return nil
	}
	fmt.Printf("%s run %d: %d sandboxes x %d tasks\n", model, runIndex+1, len(configs), len(tasks))

	// Result order is fixed by slot index, not by worker completion order.
	slots := make([]result.BenchmarkResult, len(configs)*len(tasks))
	usages := make([]gateway.Usage, len(slots))
	started := time.Now().UTC()

	var jobs []Job
	for si, sb := range configs {
		for ti, task := range tasks {
			idx := si*len(tasks) + ti
			jobs = append(jobs, func() error {
				res, usage := o.attempt(ctx, sb, task, model, ds)
				slots[idx] = res
				usages[idx] = usage
				verdict := "FAIL"
				if res.Pass {
					verdict = "PASS"
				}
				fmt.Printf("  %-14s %-18s %s (%d turns)\n", sb.ID, task.ID, verdict, res.Turns)
				return nil
			})
		}
	}
	if errs := RunPool(o.Config.Parallel, jobs); len(errs) > 0 {
		return errs[0]
	}

	var usage gateway.Usage
	for _, u := range usages {
		usage.Add(u)
	}
	sandboxIDs := make([]string, len(configs))
	for i, sb := range configs {
		sandboxIDs[i] = sb.ID
	}
	taskIDs := make([]string, len(tasks))
	for i, t := range tasks {
		taskIDs[i] = t.ID
	}
	rf := &result.RunFile{
		Metadata: result.Metadata{
			Model:            model,
			Sandboxes:        sandboxIDs,
			Tasks:            taskIDs,
			RunIndex:         runIndex,
			Perturbed:        o.Perturb && runIndex > 0,
			Seed:             seed,
			MaxTurns:         o.Config.Limits.MaxTurns,
			StartedAt:        started,
			FinishedAt:       time.Now().UTC(),
			InputTokens:      usage.InputTokens,
			OutputTokens:     usage.OutputTokens,
			EstimatedCostUSD: o.Pricing.Cost(model, usage.InputTokens, usage.OutputTokens),
		},
		Results: slots,
	}
	return result.WriteRunFile(outPath, rf)
}

// attempt runs one agent conversation in a fresh workspace and scores what
// it left behind. Every failure mode lands in the result, never in an error.
func (o *Options) attempt(ctx context.Context, sb *sandbox.Config, task dataset.Task, model string, ds *dataset.Dataset) (result.BenchmarkResult, gateway.Usage) {
	res := result.BenchmarkResult{
		Sandbox: sb.ID,
		Task:    result.TaskInfo{ID: task.ID, Expected: task.Expected, Tolerance: task.Tolerance},
	}
	var usage gateway.Usage
	start := time.Now()

	fixtures, err := sandbox.Fixtures(sb.ID)
	if err != nil {
		return infraResult(res, start, "loading fixtures", err), usage
	}
	dir, err := workspace.Create(workspace.Options{
		BaseDir:     o.Config.Workspaces.Dir,
		SandboxID:   sb.ID,
		TaskID:      task.ID,
		Fixtures:    fixtures,
		Dataset:     ds,
		WriteCSV:    sb.NeedsCSV,
		ProvisionDB: sb.NeedsDB,
	})
	if err != nil {
		return infraResult(res, start, "creating workspace", err), usage
	}
	if o.Config.Workspaces.Keep {
		log.Printf("keeping workspace %s", dir)
	} else {
		defer func() {
			if err := workspace.Remove(dir); err != nil {
				log.Printf("warning: removing workspace %s: %v", dir, err)
			}
		}()
	}

	if sb.Setup != nil {
		if err := sb.Setup(dir); err != nil {
			return infraResult(res, start, "sandbox setup", err), usage
		}
	}

	exec := tools.New(dir, o.Config.Limits, sb.Tools)
	if sb.NeedsDB {
		db, err := dataset.OpenDB(filepath.Join(dir, "data.db"))
		if err != nil {
			return infraResult(res, start, "opening workspace db", err), usage
		}
		defer db.Close()
		exec.DB = db
	}

	outcome, runErr := agent.Run(ctx, agent.Options{
		SystemPrompt: sb.SystemPrompt,
		TaskPrompt:   sb.TaskPrompt(task),
		Model:        model,
		MaxTurns:     o.Config.Limits.MaxTurns,
		Window:       o.Config.Limits.Window,
		Caller:       o.Caller,
		Executor:     exec,
	})
	if outcome != nil {
		usage = outcome.Usage
		res.Turns = outcome.Turns
		res.MaxTurnsExceeded = outcome.MaxTurnsExceeded
	}
	res.ToolUsage = result.ToolUsage{
		ReadFiles: exec.Trace.ReadFiles,
		Writes:    exec.Trace.Writes,
		Commands:  exec.Trace.Commands,
		Queries:   exec.Trace.Queries,
		Calls:     exec.Trace.Counts,
	}
	if runErr != nil {
		res.FailureKind = "gateway_error"
		res.Error = runErr.Error()
		res.DurationS = time.Since(start).Seconds()
		return res, usage
	}

	if sb.Lint != nil {
		res.Warnings = sb.Lint(dir)
		for _, w := range res.Warnings {
			log.Printf("warning: %s/%s lint: %s", sb.ID, task.ID, w)
		}
	}

	vres := sb.Validate(dir, task)
	pass, rubric := scoring.Score(vres, task, exec.Trace.ReadFiles, sb.KeyFiles)
	res.Pass = pass
	res.Actual = vres.Actual
	res.FailureKind = string(vres.Kind)
	res.Error = vres.Err
	res.Rubric = rubric
	res.DurationS = time.Since(start).Seconds()
	return res, usage
}

func infraResult(res result.BenchmarkResult, start time.Time, stage string, err error) result.BenchmarkResult {
	res.FailureKind = "infrastructure"
	res.Error = fmt.Sprintf("%s: %v", stage, err)
	res.DurationS = time.Since(start).Seconds()
	return res
}
