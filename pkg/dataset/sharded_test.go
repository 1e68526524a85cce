package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/recordfile/pkg/feature"
	"github.com/ssargent/recordfile/pkg/recordio"
)

func record(i int) feature.Map {
	return feature.NewBuilder().
		SetInt64("i", int64(i)).
		SetBytes("id", []byte(fmt.Sprintf("rec-%03d", i))).
		Release()
}

func TestShardConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ShardConfig
		wantErr string
	}{
		{"valid", ShardConfig{Dir: "d", Prefix: "train"}, ""},
		{"no dir", ShardConfig{Prefix: "train"}, "directory"},
		{"no prefix", ShardConfig{Dir: "d"}, "prefix"},
		{"separator", ShardConfig{Dir: "d", Prefix: "a/b"}, "separator"},
		{"negative", ShardConfig{Dir: "d", Prefix: "p", MaxRecordsPerShard: -1}, "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestShardedWriter_Rolls(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shards")
	sw, err := NewShardedWriter(ShardConfig{Dir: dir, Prefix: "train", MaxRecordsPerShard: 4})
	require.NoError(t, err)

	assert.Empty(t, sw.Shards(), "no shard before the first write")

	for i := 0; i < 10; i++ {
		require.NoError(t, sw.WriteFeatures(record(i)))
	}
	require.NoError(t, sw.Close())
	require.NoError(t, sw.Close())

	shards := sw.Shards()
	require.Len(t, shards, 3)
	assert.Equal(t, int64(10), sw.Count())

	listed, err := ListShards(dir, "train")
	require.NoError(t, err)
	assert.Equal(t, shards, listed, "shard names sort in creation order")

	var next int
	for i, path := range shards {
		base := filepath.Base(path)
		assert.True(t, strings.HasPrefix(base, "train-"), base)
		assert.True(t, strings.HasSuffix(base, recordio.Extension), base)
		id := strings.TrimSuffix(strings.TrimPrefix(base, "train-"), recordio.Extension)
		_, err := ksuid.Parse(id)
		assert.NoError(t, err, base)

		maps, err := ReadFile(path)
		require.NoError(t, err)
		want := 4
		if i == 2 {
			want = 2
		}
		require.Len(t, maps, want)
		for _, m := range maps {
			assert.Equal(t, []int64{int64(next)}, m["i"].Int64s())
			next++
		}
	}
}

func TestShardedWriter_NoRolling(t *testing.T) {
	dir := t.TempDir()
	sw, err := NewShardedWriter(ShardConfig{Dir: dir, Prefix: "all"})
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		require.NoError(t, sw.WriteFeatures(record(i)))
	}
	require.NoError(t, sw.Flush())
	require.NoError(t, sw.Close())

	assert.Len(t, sw.Shards(), 1)
}

func TestShardedWriter_Compressed(t *testing.T) {
	dir := t.TempDir()
	sw, err := NewShardedWriter(ShardConfig{
		Dir:                dir,
		Prefix:             "z",
		MaxRecordsPerShard: 2,
		Compression:        recordio.CompressionZstd,
	})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, sw.WriteFeatures(record(i)))
	}
	require.NoError(t, sw.Close())

	shards, err := ListShards(dir, "z")
	require.NoError(t, err)
	require.Len(t, shards, 2)
	for _, path := range shards {
		assert.True(t, strings.HasSuffix(path, recordio.Extension+".zst"), path)
	}

	maps, err := ReadFile(shards[1])
	require.NoError(t, err)
	assert.Len(t, maps, 1)
}

func TestShardedWriter_Concurrent(t *testing.T) {
	dir := t.TempDir()
	sw, err := NewShardedWriter(ShardConfig{Dir: dir, Prefix: "c", MaxRecordsPerShard: 7})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				assert.NoError(t, sw.WriteFeatures(record(g*100+i)))
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, sw.Close())

	var total int
	for _, path := range sw.Shards() {
		maps, err := ReadFile(path)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(maps), 7)
		total += len(maps)
	}
	assert.Equal(t, 100, total)
}

func TestShardedWriter_WriteAfterClose(t *testing.T) {
	sw, err := NewShardedWriter(ShardConfig{Dir: t.TempDir(), Prefix: "p"})
	require.NoError(t, err)
	require.NoError(t, sw.Close())

	assert.ErrorIs(t, sw.WriteFeatures(record(0)), recordio.ErrClosed)
}

func TestListShards_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"train-notaksuid.recordfile", "other-x.recordfile", "train.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	shards, err := ListShards(dir, "train")
	require.NoError(t, err)
	assert.Empty(t, shards)
}
