/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ssargent/recordfile/pkg/dataset"
	"github.com/ssargent/recordfile/pkg/feature"
)

// featureWriter is the part of dataset.FileWriter and dataset.ShardedWriter
// the write command needs.
type featureWriter interface {
	WriteFeatures(m feature.Map) error
	Count() int64
	Close() error
}

func newWriteCmd(a *app) *cobra.Command {
	var (
		appendMode bool
		shardSize  int64
		prefix     string
	)

	writeCmd := &cobra.Command{
		Use:   "write <path>",
		Short: "Write feature maps read as JSON from stdin",
		Long: `Write feature maps read from stdin, one JSON object per record:

  {"label": {"int64_list": [1]}, "text": {"bytes_list": ["aGVsbG8="]}}

Bytes values are base64 encoded. With --shard-size (or
writer.max_records_per_shard in the config), path is a directory and
records are spread over <prefix>-<id>.recordfile shards.

Examples:
  recordfile write train.recordfile < records.jsonl
  recordfile write --append train.recordfile < more.jsonl
  recordfile write --shard-size 100000 --prefix train ./shards < records.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if !cmd.Flags().Changed("shard-size") {
				shardSize = a.config.Writer.MaxRecordsPerShard
			}
			if appendMode && shardSize > 0 {
				return errors.New("--append cannot be combined with sharding")
			}

			w, err := openFeatureWriter(a, args[0], appendMode, shardSize, prefix)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := w.Close(); err == nil {
					err = cerr
				}
				if err == nil {
					a.logger.Info("wrote records", "path", args[0], "records", w.Count())
				}
			}()

			dec := json.NewDecoder(cmd.InOrStdin())
			for line := 1; ; line++ {
				var m feature.Map
				if err := dec.Decode(&m); err == io.EOF {
					return nil
				} else if err != nil {
					return fmt.Errorf("record %d: %w", line, err)
				}
				if m == nil {
					return fmt.Errorf("record %d: expected a JSON object", line)
				}
				if err := w.WriteFeatures(m); err != nil {
					return err
				}
			}
		},
	}

	writeCmd.Flags().BoolVarP(&appendMode, "append", "a", false, "Append to an existing uncompressed file")
	writeCmd.Flags().Int64Var(&shardSize, "shard-size", 0, "Records per shard; path is treated as a directory")
	writeCmd.Flags().StringVar(&prefix, "prefix", "part", "Shard name prefix")

	return writeCmd
}

func openFeatureWriter(a *app, path string, appendMode bool, shardSize int64, prefix string) (featureWriter, error) {
	opts := a.config.WriterOptions()
	switch {
	case shardSize > 0:
		return dataset.NewShardedWriter(dataset.ShardConfig{
			Dir:                path,
			Prefix:             prefix,
			MaxRecordsPerShard: shardSize,
			Compression:        a.config.Compression(),
			SyncOnClose:        a.config.Writer.SyncOnClose,
			Options:            opts,
		})
	case appendMode:
		return dataset.OpenAppend(path, opts...)
	default:
		return dataset.Create(path, opts...)
	}
}
