/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/recordfile/pkg/config"
	"github.com/ssargent/recordfile/pkg/index"
	"github.com/ssargent/recordfile/pkg/logging"
)

// app carries the state shared by every subcommand after the root
// pre-run has loaded it.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	config *config.Config
	logger *slog.Logger
}

// NewRootCmd builds the recordfile command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "recordfile",
		Short: "Inspect, write and serve record files",
		Long: `recordfile works with length-prefixed, CRC32-C protected record files
(TFRecord compatible) whose payloads are encoded feature maps.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"Config file (default "+config.GetDefaultConfigPath()+" when present)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(
		newInitCmd(a),
		newFixtureCmd(a),
		newCatCmd(a),
		newWriteCmd(a),
		newCopyCmd(a),
		newVerifyCmd(a),
		newIndexCmd(a),
		newGetCmd(a),
		newServeCmd(a),
	)

	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// load reads the config file, falling back to defaults when no file was
// named and the default one does not exist, then builds the logger.
func (a *app) load(logOutput io.Writer) error {
	path := a.configPath
	explicit := path != ""
	if !explicit {
		path = config.GetDefaultConfigPath()
	}

	switch {
	case config.ConfigExists(path):
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		a.config = cfg
	case explicit:
		return fmt.Errorf("config file does not exist: %s", path)
	default:
		a.config = config.DefaultConfig()
	}
	a.configPath = path

	if a.logLevel != "" {
		a.config.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		a.config.Logging.Format = a.logFormat
	}

	logger, err := logging.New(a.config.Logging, logOutput)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// indexOptions returns the configured index options logging to the app
// logger.
func (a *app) indexOptions() index.Options {
	opts := a.config.IndexOptions()
	opts.Logger = a.logger
	return opts
}
