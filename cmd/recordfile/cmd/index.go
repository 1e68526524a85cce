/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/recordfile/pkg/index"
)

func newIndexCmd(a *app) *cobra.Command {
	var keyFeature string

	indexCmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Build or extend the offset index of a file",
		Long: `Build the sidecar offset index (<path>.idx) of an uncompressed record file.

Running it again indexes only the records appended since the last run.
With --key-feature, records can also be looked up by the first value of
that bytes feature.

Examples:
  recordfile index train.recordfile
  recordfile index --key-feature user_id events.recordfile`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.indexOptions()
			if cmd.Flags().Changed("key-feature") {
				opts.KeyFeature = keyFeature
			}

			start := time.Now()
			ix, err := index.Build(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			defer ix.Close()

			meta := ix.Meta()
			cmd.Printf("Indexed %d records (%d bytes) of %s in %s\n",
				meta.Records, meta.IndexedBytes, args[0], time.Since(start).Round(time.Millisecond))
			if meta.KeyFeature != "" {
				cmd.Printf("Key feature: %s\n", meta.KeyFeature)
			}
			return nil
		},
	}

	indexCmd.Flags().StringVarP(&keyFeature, "key-feature", "k", "", "Bytes feature to index for lookups")

	return indexCmd
}
