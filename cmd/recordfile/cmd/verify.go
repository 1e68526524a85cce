/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/recordfile/pkg/recordio"
)

// verifyOutcome is the result of checking one file.
type verifyOutcome struct {
	result *recordio.VerifyResult
	report *recordio.RepairReport
	err    error
}

func newVerifyCmd(a *app) *cobra.Command {
	var (
		repair      bool
		concurrency int
	)

	verifyCmd := &cobra.Command{
		Use:   "verify <path>...",
		Short: "Check the integrity of record files",
		Long: `Check every frame of the given files, several files at a time.

With --repair, an uncompressed file with a torn or corrupt tail is
truncated back to its last valid frame.

Examples:
  recordfile verify train.recordfile eval.recordfile
  recordfile verify --repair ./shards/*.recordfile`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcomes := verifyFiles(cmd.Context(), a, args, repair, concurrency)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tRECORDS\tVALID BYTES\tSTATUS")

			failed := 0
			for i, o := range outcomes {
				status := "ok"
				var records, valid int64
				if o.result != nil {
					records, valid = o.result.Records, o.result.ValidBytes
					if !o.result.OK() {
						status = o.result.Error()
					}
				}
				if o.report != nil && o.report.Repaired {
					status = fmt.Sprintf("repaired, %d bytes truncated", o.report.BytesTruncated)
				}
				if o.err != nil {
					status = o.err.Error()
				}
				if status != "ok" && (o.report == nil || !o.report.Repaired) {
					failed++
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", args[i], records, valid, status)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed verification", failed, len(args))
			}
			return nil
		},
	}

	verifyCmd.Flags().BoolVar(&repair, "repair", false, "Truncate torn or corrupt tails of uncompressed files")
	verifyCmd.Flags().IntVarP(&concurrency, "concurrency", "j", runtime.GOMAXPROCS(0), "Files checked at once")

	return verifyCmd
}

// verifyFiles checks paths concurrently. Per-file failures are kept in the
// outcome so every file is reported.
func verifyFiles(ctx context.Context, a *app, paths []string, repair bool, concurrency int) []verifyOutcome {
	outcomes := make([]verifyOutcome, len(paths))
	opts := a.config.ReaderOptions()

	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, path := range paths {
		g.Go(func() error {
			o := &outcomes[i]
			if repair {
				o.report, o.err = recordio.Repair(ctx, path, opts...)
				if o.report != nil {
					o.result = o.report.VerifyResult
				}
			} else {
				o.result, o.err = recordio.Verify(ctx, path, opts...)
			}

			if o.err != nil {
				a.logger.Error("verify failed", "path", path, "error", o.err)
			} else if !o.result.OK() && (o.report == nil || !o.report.Repaired) {
				a.logger.Warn("record file is damaged", "path", path, "records", o.result.Records, "error", o.result.Err)
			} else {
				a.logger.Debug("verified", "path", path, "records", o.result.Records, "duration", o.result.Duration)
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
