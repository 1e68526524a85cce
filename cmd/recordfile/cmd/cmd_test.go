package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/recordfile/pkg/api"
	"github.com/ssargent/recordfile/pkg/config"
	"github.com/ssargent/recordfile/pkg/dataset"
	"github.com/ssargent/recordfile/pkg/feature"
)

type result struct {
	stdout string
	stderr string
	err    error
}

// writeTestConfig saves a default config with dataDir under a temp dir and
// returns its path.
func writeTestConfig(t *testing.T, dataDir string) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = dataDir
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.SaveConfig(cfg, path))
	return path
}

func runCmd(ctx context.Context, t *testing.T, stdin string, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))

	err := root.ExecuteContext(ctx)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func run(t *testing.T, configPath string, args ...string) result {
	t.Helper()
	return runCmd(context.Background(), t, "", append([]string{"--config", configPath}, args...)...)
}

func decodeViews(t *testing.T, out string) []api.RecordView {
	t.Helper()
	var views []api.RecordView
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var v api.RecordView
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &v), scanner.Text())
		views = append(views, v)
	}
	require.NoError(t, scanner.Err())
	return views
}

func writeUsers(t *testing.T, path string, n int) {
	t.Helper()
	maps := make([]feature.Map, n)
	for i := range maps {
		maps[i] = feature.Map{
			"user_id": feature.NewBytesList([]byte("user-" + string(rune('a'+i%3)))),
			"seq":     feature.NewInt64List(int64(i)),
		}
	}
	require.NoError(t, dataset.WriteFile(path, maps))
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "nested", "config.yaml")
	dataDir := filepath.Join(dir, "data")

	res := runCmd(context.Background(), t, "", "init", "--config", configPath, "--data-dir", dataDir)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Wrote config to "+configPath)

	cfg, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Len(t, cfg.Server.APIKey, 64)

	t.Run("existing config is kept", func(t *testing.T) {
		res := runCmd(context.Background(), t, "", "init", "--config", configPath)
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, "already exists")

		again, err := config.LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, cfg.Server.APIKey, again.Server.APIKey)
	})

	t.Run("force overwrites", func(t *testing.T) {
		res := runCmd(context.Background(), t, "", "init", "--config", configPath, "--force")
		require.NoError(t, res.err)

		again, err := config.LoadConfig(configPath)
		require.NoError(t, err)
		assert.NotEqual(t, cfg.Server.APIKey, again.Server.APIKey)
	})
}

func TestRootCommand_MissingConfig(t *testing.T) {
	res := run(t, filepath.Join(t.TempDir(), "missing.yaml"), "cat", "x.recordfile")
	assert.ErrorContains(t, res.err, "config file does not exist")
}

func TestRootCommand_InvalidLogLevel(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())
	res := run(t, configPath, "--log-level", "loud", "cat", "x.recordfile")
	assert.ErrorContains(t, res.err, "unknown log level")
}

func TestFixtureCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)
	path := filepath.Join(dir, "singles.recordfile")

	res := run(t, configPath, "fixture", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "wrote fixture")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join("..", "..", "..", "pkg", "recordio", "testdata", "singles.recordfile"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCatCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)
	path := filepath.Join(dir, "singles.recordfile")
	require.NoError(t, run(t, configPath, "fixture", path).err)

	t.Run("json", func(t *testing.T) {
		res := run(t, configPath, "cat", path)
		require.NoError(t, res.err)

		views := decodeViews(t, res.stdout)
		require.Len(t, views, 3)
		assert.Equal(t, []int64{42}, views[0].Features["int_feature"].Int64s())
		assert.Equal(t, []float32{3.14}, views[1].Features["float_feature"].Floats())
		assert.Equal(t, [][]byte{[]byte("@ABCD")}, views[2].Features["byte_feature"].Bytes())
		assert.Equal(t, uint64(2), views[2].Ordinal)
		assert.Positive(t, views[2].Offset)
	})

	t.Run("table", func(t *testing.T) {
		res := run(t, configPath, "cat", path, "--format", "table")
		require.NoError(t, res.err)

		lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
		require.Len(t, lines, 4)
		assert.True(t, strings.HasPrefix(lines[0], "ORDINAL"))
		assert.Contains(t, lines[1], "int_feature")
		assert.Contains(t, lines[3], `"@ABCD"`)
	})

	t.Run("skip and limit", func(t *testing.T) {
		res := run(t, configPath, "cat", path, "--skip", "1", "--limit", "1")
		require.NoError(t, res.err)

		views := decodeViews(t, res.stdout)
		require.Len(t, views, 1)
		assert.Equal(t, uint64(1), views[0].Ordinal)
	})

	t.Run("raw", func(t *testing.T) {
		res := run(t, configPath, "cat", path, "--raw", "--limit", "1")
		require.NoError(t, res.err)

		views := decodeViews(t, res.stdout)
		require.Len(t, views, 1)
		assert.Nil(t, views[0].Features)
		m, err := feature.Decode(views[0].Raw)
		require.NoError(t, err)
		assert.Contains(t, m, "int_feature")
	})

	t.Run("unknown format", func(t *testing.T) {
		res := run(t, configPath, "cat", path, "--format", "xml")
		assert.ErrorContains(t, res.err, "unknown format")
	})

	t.Run("corrupt tail", func(t *testing.T) {
		broken := filepath.Join(dir, "broken.recordfile")
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(broken, data[:len(data)-2], 0644))

		res := run(t, configPath, "cat", broken)
		assert.ErrorContains(t, res.err, "truncated")
		assert.Len(t, decodeViews(t, res.stdout), 2)
	})
}

func TestWriteCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)
	input := `{"seq": {"int64_list": [0]}}
{"seq": {"int64_list": [1]}, "name": {"bytes_list": ["Ym9i"]}}
{"seq": {"int64_list": [2]}, "score": {"float_list": [0.5]}}
`

	t.Run("single file", func(t *testing.T) {
		path := filepath.Join(dir, "written.recordfile")
		res := runCmd(context.Background(), t, input, "--config", configPath, "write", path)
		require.NoError(t, res.err)

		maps, err := dataset.ReadFile(path)
		require.NoError(t, err)
		require.Len(t, maps, 3)
		assert.Equal(t, [][]byte{[]byte("bob")}, maps[1]["name"].Bytes())

		res = runCmd(context.Background(), t, `{"seq": {"int64_list": [3]}}`, "--config", configPath, "write", "--append", path)
		require.NoError(t, res.err)
		maps, err = dataset.ReadFile(path)
		require.NoError(t, err)
		assert.Len(t, maps, 4)
	})

	t.Run("compressed", func(t *testing.T) {
		path := filepath.Join(dir, "written.recordfile.gz")
		res := runCmd(context.Background(), t, input, "--config", configPath, "write", path)
		require.NoError(t, res.err)

		maps, err := dataset.ReadFile(path)
		require.NoError(t, err)
		assert.Len(t, maps, 3)
	})

	t.Run("sharded", func(t *testing.T) {
		shardDir := filepath.Join(dir, "shards")
		res := runCmd(context.Background(), t, input, "--config", configPath,
			"write", "--shard-size", "2", "--prefix", "train", shardDir)
		require.NoError(t, res.err)

		shards, err := dataset.ListShards(shardDir, "train")
		require.NoError(t, err)
		assert.Len(t, shards, 2)
	})

	t.Run("append with shards", func(t *testing.T) {
		res := runCmd(context.Background(), t, input, "--config", configPath,
			"write", "--append", "--shard-size", "2", filepath.Join(dir, "x"))
		assert.Error(t, res.err)
	})

	t.Run("invalid input", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.recordfile")
		res := runCmd(context.Background(), t, `{"seq": {"int64_list": [0]}}`+"\n[1,2]\n", "--config", configPath, "write", path)
		assert.ErrorContains(t, res.err, "record 2")

		maps, err := dataset.ReadFile(path)
		require.NoError(t, err)
		assert.Len(t, maps, 1)
	})
}

func TestVerifyCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)

	good := filepath.Join(dir, "good.recordfile")
	writeUsers(t, good, 4)
	torn := filepath.Join(dir, "torn.recordfile")
	writeUsers(t, torn, 4)
	info, err := os.Stat(torn)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(torn, info.Size()-5))

	res := run(t, configPath, "verify", good)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "ok")

	res = run(t, configPath, "verify", good, torn, filepath.Join(dir, "missing.recordfile"))
	assert.ErrorContains(t, res.err, "2 of 3 files failed verification")
	assert.Contains(t, res.stdout, "truncated")

	res = run(t, configPath, "verify", "--repair", torn)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "repaired")

	res = run(t, configPath, "verify", torn)
	require.NoError(t, res.err)
	maps, err := dataset.ReadFile(torn)
	require.NoError(t, err)
	assert.Len(t, maps, 3)
}

func TestIndexAndGetCommands(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)
	path := filepath.Join(dir, "users.recordfile")
	writeUsers(t, path, 7)

	res := run(t, configPath, "get", path, "1")
	assert.ErrorContains(t, res.err, "recordfile index")

	res = run(t, configPath, "index", path, "--key-feature", "user_id")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Indexed 7 records")
	assert.Contains(t, res.stdout, "Key feature: user_id")

	t.Run("by ordinal", func(t *testing.T) {
		res := run(t, configPath, "get", path, "5")
		require.NoError(t, res.err)

		views := decodeViews(t, res.stdout)
		require.Len(t, views, 1)
		assert.Equal(t, uint64(5), views[0].Ordinal)
		assert.Equal(t, []int64{5}, views[0].Features["seq"].Int64s())
	})

	t.Run("by key", func(t *testing.T) {
		res := run(t, configPath, "get", path, "--key", "user-b")
		require.NoError(t, res.err)

		views := decodeViews(t, res.stdout)
		require.Len(t, views, 2)
		assert.Equal(t, uint64(1), views[0].Ordinal)
		assert.Equal(t, uint64(4), views[1].Ordinal)
	})

	t.Run("unknown key", func(t *testing.T) {
		res := run(t, configPath, "get", path, "--key", "nobody")
		assert.ErrorContains(t, res.err, "no record with key")
	})

	t.Run("ordinal out of range", func(t *testing.T) {
		res := run(t, configPath, "get", path, "70")
		assert.Error(t, res.err)
	})

	t.Run("ordinal and key", func(t *testing.T) {
		res := run(t, configPath, "get", path, "1", "--key", "user-a")
		assert.ErrorContains(t, res.err, "either an ordinal or --key")
	})
}

func TestServeCommand_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := runCmd(ctx, t, "", "--config", configPath, "serve", "--port", "0", "--data-dir", filepath.Join(dir, "served"))
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "serving record files")
	assert.DirExists(t, filepath.Join(dir, "served"))
}

func TestCatCommand_Where(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)
	path := filepath.Join(dir, "users.recordfile")
	writeUsers(t, path, 9)

	res := run(t, configPath, "cat", path, "--where", "user_id=user-c", "--where", "seq>2")
	require.NoError(t, res.err)

	views := decodeViews(t, res.stdout)
	require.Len(t, views, 2)
	assert.Equal(t, uint64(5), views[0].Ordinal)
	assert.Equal(t, uint64(8), views[1].Ordinal)

	res = run(t, configPath, "cat", path, "--where", "user_id=user-a", "--limit", "2")
	require.NoError(t, res.err)
	assert.Len(t, decodeViews(t, res.stdout), 2)

	res = run(t, configPath, "cat", path, "--where", "seq=abc")
	assert.ErrorContains(t, res.err, "not an integer")

	res = run(t, configPath, "cat", path, "--where", "seq")
	assert.ErrorContains(t, res.err, "no operator")
}

func TestCopyCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)
	src := filepath.Join(dir, "users.recordfile")
	writeUsers(t, src, 6)

	t.Run("recompress", func(t *testing.T) {
		dst := filepath.Join(dir, "users.recordfile.zst")
		res := run(t, configPath, "copy", src, dst)
		require.NoError(t, res.err)
		assert.Contains(t, res.stderr, "copied records")

		want, err := dataset.ReadFile(src)
		require.NoError(t, err)
		got, err := dataset.ReadFile(dst)
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.True(t, want[i].Equal(got[i]), "record %d", i)
		}
	})

	t.Run("filter", func(t *testing.T) {
		dst := filepath.Join(dir, "b.recordfile")
		res := run(t, configPath, "copy", src, dst, "--where", "user_id=user-b")
		require.NoError(t, res.err)

		got, err := dataset.ReadFile(dst)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, []int64{1}, got[0]["seq"].Int64s())
		assert.Equal(t, []int64{4}, got[1]["seq"].Int64s())
	})

	t.Run("same file", func(t *testing.T) {
		before, err := os.ReadFile(src)
		require.NoError(t, err)

		res := run(t, configPath, "copy", src, src)
		require.Error(t, res.err)
		assert.Contains(t, res.err.Error(), "same file")

		linked := filepath.Join(dir, "linked.recordfile")
		require.NoError(t, os.Link(src, linked))
		res = run(t, configPath, "copy", linked, src)
		assert.ErrorContains(t, res.err, "same file")

		after, err := os.ReadFile(src)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("missing source", func(t *testing.T) {
		res := run(t, configPath, "copy", filepath.Join(dir, "nope.recordfile"), filepath.Join(dir, "out.recordfile"))
		assert.Error(t, res.err)
	})
}
