package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalnine/archbench/internal/dataset"
	"github.com/signalnine/archbench/internal/sandbox"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sandboxes, tasks, and configured models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fmt.Println("Sandboxes:")
			for _, id := range sandbox.IDs() {
				fmt.Printf("  - %s\n", id)
			}
			fmt.Println("\nTasks:")
			for _, task := range dataset.Tasks(dataset.Generate(cfg.Seed)) {
				fmt.Printf("  - %s (tolerance %g)\n", task.ID, task.Tolerance)
			}
			fmt.Println("\nModels:")
			for _, m := range cfg.Models {
				fmt.Printf("  - %s\n", m)
			}
			return nil
		},
	}
}
