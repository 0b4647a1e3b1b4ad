package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/archbench/internal/config"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "archbench",
		Short: "Benchmark harness for agents working across data-access architectures",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "archbench.yaml", "config file path")
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newCheckCmd())
	return root
}

// loadConfig falls back to built-in defaults when the default config file is
// absent. A path the user set explicitly must load.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		if !cmd.Root().PersistentFlags().Changed("config") && errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}
