package main

import (
	"fmt"

	"streamvault/internal/configuration"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Long: `Print the configuration serve would run with, after environment
expansion and profile overrides, then validate it.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := configuration.Load(configDir)
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode configuration: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}
