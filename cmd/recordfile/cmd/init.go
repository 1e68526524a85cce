/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/recordfile/pkg/config"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		dataDir string
		force   bool
	)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a default configuration file with a generated API key.

Examples:
  recordfile init
  recordfile init --config ./recordfile.yaml --data-dir ./data`,
		Args: cobra.NoArgs,
		// The config file does not exist yet, so skip loading it.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				path = config.GetDefaultConfigPath()
			}

			if config.ConfigExists(path) && !force {
				cmd.Printf("Config already exists at %s. Use --force to overwrite.\n", path)
				return nil
			}

			cfg, err := config.BootstrapConfig(path, dataDir)
			if err != nil {
				return err
			}

			cmd.Printf("Wrote config to %s\n", path)
			cmd.Printf("Data directory: %s\n", cfg.DataDir)
			cmd.Printf("API key: %s\n", cfg.Server.APIKey)
			cmd.Printf("\nYou can now start the server with:\n")
			cmd.Printf("  recordfile serve --config %s\n", path)
			return nil
		},
	}

	initCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory served by the API (default ./data)")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return initCmd
}
