/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ssargent/recordfile/pkg/index"
)

func newGetCmd(a *app) *cobra.Command {
	var (
		key    string
		format string
		raw    bool
	)

	getCmd := &cobra.Command{
		Use:   "get <path> [ordinal]",
		Short: "Read records through the offset index",
		Long: `Read one record by ordinal, or every record whose key feature matches
--key, using the index built by "recordfile index".

Examples:
  recordfile get train.recordfile 41
  recordfile get events.recordfile --key user-3 --format table`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := validateFormat(format); err != nil {
				return err
			}
			byKey := cmd.Flags().Changed("key")
			if byKey == (len(args) == 2) {
				return errors.New("give either an ordinal or --key")
			}

			ix, err := index.Open(args[0], a.indexOptions())
			if errors.Is(err, index.ErrNotIndexed) {
				return fmt.Errorf("%w: run \"recordfile index %s\" first", err, args[0])
			}
			if err != nil {
				return err
			}
			defer ix.Close()

			var entries []index.Entry
			if byKey {
				if entries, err = ix.Lookup([]byte(key)); err != nil {
					return err
				}
				if len(entries) == 0 {
					return fmt.Errorf("no record with key %q", key)
				}
			} else {
				ordinal, err := strconv.ParseUint(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid ordinal %q", args[1])
				}
				e, err := ix.Entry(ordinal)
				if err != nil {
					return err
				}
				entries = []index.Entry{e}
			}

			p := newRecordPrinter(cmd.OutOrStdout(), format)
			defer func() {
				if cerr := p.Close(); err == nil {
					err = cerr
				}
			}()
			for _, e := range entries {
				payload, err := ix.Get(e.Ordinal)
				if err != nil {
					return err
				}
				if err := p.print(view(e.Ordinal, e.Offset, payload, raw)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	getCmd.Flags().StringVarP(&key, "key", "k", "", "Look records up by key feature value")
	getCmd.Flags().StringVarP(&format, "format", "f", formatJSON, "Output format: json or table")
	getCmd.Flags().BoolVar(&raw, "raw", false, "Print payloads as bytes without decoding")

	return getCmd
}
