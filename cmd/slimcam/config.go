package main

import (
	"fmt"

	"github.com/fako1024/slimcam/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the effective configuration (after merging defaults, config file,
environment variables and flags) as YAML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := yaml.Marshal(cfg())
			if err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
