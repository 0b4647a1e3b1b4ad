package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/archbench/internal/dataset"
	"github.com/signalnine/archbench/internal/sandbox"
	"github.com/signalnine/archbench/internal/workspace"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify configuration, credentials, and sandbox fixtures",
		Long:  "Resolve the effective config, confirm the API key env var is set, materialize and tear down a workspace for every sandbox, and print the benchmark matrix.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fmt.Printf("config: ok (models %d, runs %d, parallel %d, seed %d)\n",
				len(cfg.Models), cfg.Runs, cfg.Parallel, cfg.Seed)

			if os.Getenv(cfg.Gateway.APIKeyEnv) == "" {
				fmt.Printf("api key: %s is NOT set\n", cfg.Gateway.APIKeyEnv)
			} else {
				fmt.Printf("api key: %s is set\n", cfg.Gateway.APIKeyEnv)
			}

			ds := dataset.Generate(cfg.Seed)
			tasks := dataset.FilterTasks(dataset.Tasks(ds), cfg.Tasks)

			failures := 0
			for _, id := range sandbox.IDs() {
				sb, err := sandbox.New(id, ds)
				if err != nil {
					return err
				}
				fixtures, err := sandbox.Fixtures(id)
				if err != nil {
					fmt.Printf("sandbox %s: %v\n", id, err)
					failures++
					continue
				}
				dir, err := workspace.Create(workspace.Options{
					BaseDir:     cfg.Workspaces.Dir,
					SandboxID:   id,
					TaskID:      "check",
					Fixtures:    fixtures,
					Dataset:     ds,
					WriteCSV:    sb.NeedsCSV,
					ProvisionDB: sb.NeedsDB,
				})
				if err != nil {
					fmt.Printf("sandbox %s: %v\n", id, err)
					failures++
					continue
				}
				if err := workspace.Remove(dir); err != nil {
					fmt.Printf("sandbox %s: cleanup: %v\n", id, err)
				}
				fmt.Printf("sandbox %s: ok\n", id)
			}

			fmt.Printf("matrix: %d sandboxes x %d tasks x %d models x %d runs = %d attempts\n",
				len(sandbox.IDs()), len(tasks), len(cfg.Models), cfg.Runs,
				len(sandbox.IDs())*len(tasks)*len(cfg.Models)*cfg.Runs)
			if failures > 0 {
				return fmt.Errorf("%d sandbox checks failed", failures)
			}
			return nil
		},
	}
}
