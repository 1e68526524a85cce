/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssargent/recordfile/pkg/dataset"
	"github.com/ssargent/recordfile/pkg/query"
)

func newCopyCmd(a *app) *cobra.Command {
	var where []string

	copyCmd := &cobra.Command{
		Use:   "copy <src> <dst>",
		Short: "Copy feature records between files",
		Long: `Copy the feature records of src to dst, optionally keeping only those
matching --where. Compression of each side follows its file suffix, so
copy also converts between compressed and uncompressed files.

Both files must hold feature maps; copying stops at the first record
that is corrupt or does not decode.

Examples:
  recordfile copy train.recordfile train.recordfile.zst
  recordfile copy train.recordfile positives.recordfile --where "label>=1"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			q, err := query.Parse(where...)
			if err != nil {
				return err
			}

			if sameFile(args[0], args[1]) {
				return fmt.Errorf("source and destination are the same file: %s", args[0])
			}

			src, err := dataset.Open(args[0], a.config.ReaderOptions()...)
			if err != nil {
				return err
			}
			defer src.Close()

			dst, err := dataset.Create(args[1], a.config.WriterOptions()...)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := dst.Close(); err == nil {
					err = cerr
				}
			}()

			for m, err := range q.Filter(src.All()) {
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				if err := dst.WriteFeatures(m); err != nil {
					return err
				}
			}

			a.logger.Info("copied records", "src", args[0], "dst", args[1],
				"read", src.Count(), "written", dst.Count())
			return nil
		},
	}

	copyCmd.Flags().StringArrayVarP(&where, "where", "w", nil, "Copy only records matching <feature><op><value>")

	return copyCmd
}

// sameFile reports whether a and b name the same file. A destination that
// does not exist yet never matches.
func sameFile(a, b string) bool {
	sa, errA := os.Stat(a)
	sb, errB := os.Stat(b)
	if errA == nil && errB == nil {
		return os.SameFile(sa, sb)
	}

	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
