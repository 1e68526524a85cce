/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/recordfile/pkg/dataset"
	"github.com/ssargent/recordfile/pkg/feature"
)

// fixtureRecords are the three single-feature records used to check
// interoperability with other record file readers.
func fixtureRecords() []feature.Map {
	return []feature.Map{
		{"int_feature": feature.NewInt64List(42)},
		{"float_feature": feature.NewFloatList(3.14)},
		{"byte_feature": feature.NewBytesList([]byte("@ABCD"))},
	}
}

func newFixtureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fixture <path>",
		Short: "Write the three-record interoperability fixture",
		Long: `Write one int64, one float and one bytes feature record to path.

Example:
  recordfile fixture singles.recordfile`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records := fixtureRecords()
			if err := dataset.WriteFile(args[0], records, a.config.WriterOptions()...); err != nil {
				return err
			}
			a.logger.Info("wrote fixture", "path", args[0], "records", len(records))
			return nil
		},
	}
}
