package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/signalnine/archbench/internal/gateway"
	"github.com/signalnine/archbench/internal/pricing"
	"github.com/signalnine/archbench/internal/report"
	"github.com/signalnine/archbench/internal/result"
	"github.com/signalnine/archbench/internal/runner"
	"github.com/signalnine/archbench/internal/sandbox"
)

var (
	flagSandbox        string
	flagTask           string
	flagModel          string
	flagRuns           int
	flagMaxTurns       int
	flagParallel       int
	flagOutput         string
	flagPerturb        bool
	flagKeepWorkspaces bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the benchmark matrix",
		RunE:  runBenchmark,
	}
	cmd.Flags().StringVar(&flagSandbox, "sandbox", "all", "comma-separated sandbox ids, or all")
	cmd.Flags().StringVar(&flagTask, "task", "", "comma-separated task ids (default all)")
	cmd.Flags().StringVar(&flagModel, "model", "", "comma-separated models (default from config)")
	cmd.Flags().IntVar(&flagRuns, "runs", 0, "runs per model (default from config)")
	cmd.Flags().IntVar(&flagMaxTurns, "max-turns", 0, "turn budget per attempt (default from config)")
	cmd.Flags().IntVar(&flagParallel, "parallel", 0, "max concurrent attempts (default from config)")
	cmd.Flags().StringVar(&flagOutput, "output", "", "write results into this directory instead of a fresh run dir")
	cmd.Flags().BoolVar(&flagPerturb, "perturb", false, "regenerate the dataset with a derived seed for each run")
	cmd.Flags().BoolVar(&flagKeepWorkspaces, "keep-workspaces", false, "keep workspaces after each attempt")
	return cmd
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if flagRuns > 0 {
		cfg.Runs = flagRuns
	}
	if flagMaxTurns > 0 {
		cfg.Limits.MaxTurns = flagMaxTurns
	}
	if flagParallel > 0 {
		cfg.Parallel = flagParallel
	}
	if flagKeepWorkspaces {
		cfg.Workspaces.Keep = true
	}

	selector := splitList(flagSandbox)
	if !cmd.Flags().Changed("sandbox") && len(cfg.Sandboxes) > 0 {
		selector = cfg.Sandboxes
	}
	sandboxIDs, err := sandbox.Expand(selector)
	if err != nil {
		return err
	}

	taskIDs := splitList(flagTask)
	if len(taskIDs) == 0 {
		taskIDs = cfg.Tasks
	}

	models := cfg.Models
	if flagModel != "" {
		models = splitList(flagModel)
	}

	runDir := flagOutput
	if runDir == "" {
		runDir, err = result.CreateRunDir(cfg.Results.Dir)
		if err != nil {
			return err
		}
	} else if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir %s: %w", runDir, err)
	}
	fmt.Printf("Run directory: %s\n", runDir)

	table := pricing.Default()
	if cfg.Pricing.Table != "" {
		loaded, err := pricing.Load(cfg.Pricing.Table)
		if err != nil {
			log.Printf("warning: loading pricing table: %v", err)
		} else {
			table = loaded
		}
	}

	client, err := gateway.New(cfg.Gateway)
	if err != nil {
		return err
	}

	err = runner.Run(context.Background(), &runner.Options{
		Config:    cfg,
		Caller:    client,
		Models:    models,
		Sandboxes: sandboxIDs,
		Tasks:     taskIDs,
		Runs:      cfg.Runs,
		Perturb:   flagPerturb,
		RunDir:    runDir,
		Pricing:   table,
	})
	if err != nil {
		return err
	}

	fmt.Println("\n--- Results ---")
	return report.Generate(runDir, "table", os.Stdout)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
