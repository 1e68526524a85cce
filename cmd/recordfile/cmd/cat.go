/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ssargent/recordfile/pkg/feature"
	"github.com/ssargent/recordfile/pkg/query"
	"github.com/ssargent/recordfile/pkg/recordio"
)

func newCatCmd(a *app) *cobra.Command {
	var (
		format string
		raw    bool
		limit  uint64
		skip   uint64
		where  []string
	)

	catCmd := &cobra.Command{
		Use:   "cat <path>",
		Short: "Print the records of a file",
		Long: `Print the records of a record file, decoding feature maps when possible.

Reading stops at the first corrupt or truncated frame; the records before
it are printed and the command fails. With --where, only feature maps
matching every condition are printed and --limit counts matches.

Examples:
  recordfile cat train.recordfile
  recordfile cat train.recordfile.gz --format table --limit 10
  recordfile cat blobs.recordfile --raw
  recordfile cat train.recordfile --where "label>=3" --where lang=en`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := validateFormat(format); err != nil {
				return err
			}

			q, err := query.Parse(where...)
			if err != nil {
				return err
			}

			r, err := recordio.OpenFile(args[0], a.config.ReaderOptions()...)
			if err != nil {
				return err
			}
			defer r.Close()

			p := newRecordPrinter(cmd.OutOrStdout(), format)
			defer func() {
				if cerr := p.Close(); err == nil {
					err = cerr
				}
			}()

			var printed uint64
			for ordinal := uint64(0); limit == 0 || printed < limit; ordinal++ {
				offset := r.Offset()
				payload, err := r.Next()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				if ordinal < skip {
					continue
				}
				if len(q) > 0 {
					m, err := feature.Decode(payload)
					if err != nil {
						continue // Only feature maps can match
					}
					if ok, err := q.Match(m); err != nil {
						return fmt.Errorf("record %d: %w", ordinal, err)
					} else if !ok {
						continue
					}
				}
				if err := p.print(view(ordinal, offset, payload, raw)); err != nil {
					return err
				}
				printed++
			}
			return nil
		},
	}

	catCmd.Flags().StringVarP(&format, "format", "f", formatJSON, "Output format: json or table")
	catCmd.Flags().BoolVar(&raw, "raw", false, "Print payloads as bytes without decoding")
	catCmd.Flags().Uint64VarP(&limit, "limit", "n", 0, "Print at most this many records (0 for all)")
	catCmd.Flags().Uint64Var(&skip, "skip", 0, "Skip this many records first")
	catCmd.Flags().StringArrayVarP(&where, "where", "w", nil, "Print only records matching <feature><op><value>, op one of = != > >= < <=")

	return catCmd
}
