/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/recordfile/pkg/api"
	"github.com/ssargent/recordfile/pkg/metrics"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		dataDir string
		port    int
		bind    string
		apiKey  string
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Serve the record files of the data directory over HTTP.

Flags override the server section of the config file. When an API key is
set, the /api/v1/files routes require it in the X-API-Key header.

Examples:
  recordfile serve
  recordfile serve --data-dir ./data --port 9000 --api-key mysecretkey`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("bind") {
				cfg.Server.Bind = bind
			}
			if cmd.Flags().Changed("api-key") {
				cfg.Server.APIKey = apiKey
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			m := metrics.New()
			store, err := api.NewDirStore(cfg.DataDir, api.DirStoreOptions{
				ReaderOptions: cfg.ReaderOptions(),
				WriterOptions: cfg.WriterOptions(),
				IndexOptions:  a.indexOptions(),
				Observer:      m,
			})
			if err != nil {
				return err
			}
			defer store.Close()

			server := api.NewServer(store, api.ServerConfig{
				Addr:            cfg.Addr(),
				APIKey:          cfg.Server.APIKey,
				AllowedOrigins:  cfg.Server.AllowedOrigins,
				MaxPageSize:     cfg.Server.MaxPageSize,
				ReadTimeout:     cfg.Server.ReadTimeout,
				WriteTimeout:    cfg.Server.WriteTimeout,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
			}, m, a.logger)

			if cfg.Server.APIKey == "" {
				a.logger.Warn("no API key configured, file routes are open")
			}
			a.logger.Info("serving record files", "data_dir", cfg.DataDir, "addr", cfg.Addr())

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return server.ListenAndServe(ctx)
		},
	}

	serveCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "Directory of record files to serve")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on")
	serveCmd.Flags().StringVar(&bind, "bind", "", "Address to bind to")
	serveCmd.Flags().StringVar(&apiKey, "api-key", "", "API key required on file routes")

	return serveCmd
}

