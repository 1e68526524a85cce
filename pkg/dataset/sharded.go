package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/recordfile/pkg/feature"
	"github.com/ssargent/recordfile/pkg/recordio"
)

// ShardConfig configures a ShardedWriter.
type ShardConfig struct {
	Dir                string               // Directory receiving the shards
	Prefix             string               // Shard name prefix
	MaxRecordsPerShard int64                // Roll to a new shard after this many records; 0 disables rolling
	Compression        recordio.Compression // Applied to every shard
	SyncOnClose        bool
	Options            []recordio.Option // Extra writer options
}

// Validate checks the configuration.
func (c ShardConfig) Validate() error {
	if c.Dir == "" {
		return errors.New("shard directory cannot be empty")
	}
	if c.Prefix == "" {
		return errors.New("shard prefix cannot be empty")
	}
	if strings.ContainsRune(c.Prefix, filepath.Separator) {
		return fmt.Errorf("shard prefix %q must not contain a path separator", c.Prefix)
	}
	if c.MaxRecordsPerShard < 0 {
		return errors.New("max records per shard cannot be negative")
	}
	return nil
}

// ShardedWriter spreads records over files named
// <prefix>-<ksuid>.recordfile[.<suffix>]. Names from one writer sort in
// creation order. It is safe for concurrent use.
type ShardedWriter struct {
	config ShardConfig
	opts   []recordio.Option
	seq    ksuid.Sequence

	mu      sync.Mutex
	current *FileWriter
	shards  []string
	total   int64
	closed  bool
}

// NewShardedWriter validates config and creates the target directory.
// The first shard is created on the first write.
func NewShardedWriter(config ShardConfig) (*ShardedWriter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.Dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create shard directory: %w", err)
	}

	opts := append([]recordio.Option{
		recordio.WithCompression(config.Compression),
		recordio.WithSyncOnClose(config.SyncOnClose),
	}, config.Options...)

	return &ShardedWriter{
		config: config,
		opts:   opts,
		seq:    ksuid.Sequence{Seed: ksuid.New()},
	}, nil
}

// WriteFeatures appends m to the current shard, rolling first if it is full.
func (s *ShardedWriter) WriteFeatures(m feature.Map) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return recordio.ErrClosed
	}
	if err := s.rollIfFull(); err != nil {
		return err
	}
	if err := s.current.WriteFeatures(m); err != nil {
		return err
	}
	s.total++
	return nil
}

func (s *ShardedWriter) rollIfFull() error {
	if s.current != nil {
		if s.config.MaxRecordsPerShard == 0 || s.current.Count() < s.config.MaxRecordsPerShard {
			return nil
		}
		if err := s.current.Close(); err != nil {
			return err
		}
		s.current = nil
	}

	name, err := s.nextName()
	if err != nil {
		return err
	}
	w, err := Create(filepath.Join(s.config.Dir, name), s.opts...)
	if err != nil {
		return err
	}
	s.current = w
	s.shards = append(s.shards, w.Path())
	return nil
}

func (s *ShardedWriter) nextName() (string, error) {
	id, err := s.seq.Next()
	if err != nil {
		// The sequence is exhausted; start a new one.
		s.seq = ksuid.Sequence{Seed: ksuid.New()}
		if id, err = s.seq.Next(); err != nil {
			return "", err
		}
	}
	return s.config.Prefix + "-" + id.String() + recordio.Extension + s.config.Compression.Suffix(), nil
}

// Flush flushes the current shard.
func (s *ShardedWriter) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	return s.current.Flush()
}

// Shards returns the paths of every shard created so far.
func (s *ShardedWriter) Shards() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.shards...)
}

// Count returns the number of records written across all shards.
func (s *ShardedWriter) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.total
}

// Close closes the current shard. Closing twice is a no-op.
func (s *ShardedWriter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.current == nil {
		return nil
	}
	err := s.current.Close()
	s.current = nil
	return err
}

// ListShards returns the shards in dir written with prefix, oldest first.
func ListShards(dir, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*"+recordio.Extension+"*"))
	if err != nil {
		return nil, err
	}

	shards := matches[:0]
	for _, path := range matches {
		id := strings.TrimPrefix(filepath.Base(path), prefix+"-")
		id, _, _ = strings.Cut(id, ".")
		if _, err := ksuid.Parse(id); err == nil {
			shards = append(shards, path)
		}
	}
	sort.Strings(shards)
	return shards, nil
}
