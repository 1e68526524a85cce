// Package index maintains a pebble sidecar database that maps record
// ordinals, and optionally the value of a key feature, to frame offsets in
// an uncompressed record file.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/pebble"
	farm "github.com/dgryski/go-farm"

	"github.com/ssargent/recordfile/pkg/codec"
	"github.com/ssargent/recordfile/pkg/feature"
	"github.com/ssargent/recordfile/pkg/recordio"
)

// DirSuffix is appended to the record file path to name the sidecar.
const DirSuffix = ".idx"

var (
	ErrNotFound     = errors.New("record not in index")
	ErrNotIndexed   = errors.New("record file has no index")
	ErrStale        = errors.New("index is stale: record file changed since it was built")
	ErrNoKeyFeature = errors.New("index was built without a key feature")
	ErrCorruptIndex = errors.New("index database is corrupt")
)

// Options configures building and opening an index.
type Options struct {
	Dir           string       // Sidecar directory; defaults to <source>.idx
	KeyFeature    string       // BytesList feature whose first value is indexed for Lookup
	BatchSize     int          // Records per pebble batch during Build
	MaxRecordSize uint64       // Passed to the record reader
	Logger        *slog.Logger // Build progress; discarded when nil
}

// DefaultBatchSize is the number of records committed per pebble batch.
const DefaultBatchSize = 1024

func (o Options) withDefaults(source string) Options {
	if o.Dir == "" {
		o.Dir = source + DirSuffix
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Meta describes what an index covers.
type Meta struct {
	Source       string    `json:"source"`
	KeyFeature   string    `json:"key_feature,omitempty"`
	Records      uint64    `json:"records"`
	IndexedBytes int64     `json:"indexed_bytes"` // Offset just past the last indexed frame
	HeadChecksum uint32    `json:"head_checksum"` // Masked CRC32-C of the first payload
	TailOffset   int64     `json:"tail_offset"`   // Offset of the last indexed frame
	TailChecksum uint32    `json:"tail_checksum"` // Masked CRC32-C of the last indexed payload
	UpdatedAt    time.Time `json:"updated_at"`
}

// Entry locates one record.
type Entry struct {
	Ordinal uint64 `json:"ordinal"`
	Offset  int64  `json:"offset"`
	Size    int64  `json:"size"` // Whole frame, header and footer included
}

// Index is an open sidecar index. Reads are safe for concurrent use.
type Index struct {
	db     *pebble.DB
	source *os.File
	opts   Options
	meta   Meta
}

// Build indexes source, creating the sidecar if needed. An existing index
// built with the same key feature is extended from where it stopped; one
// built with a different key feature, or whose first or last indexed frame
// no longer matches the file, is rebuilt. Records are committed in batches, so a failed or
// canceled build leaves a usable index of the records before the failure.
func Build(ctx context.Context, source string, opts Options) (*Index, error) {
	opts = opts.withDefaults(source)
	if recordio.CompressionFromPath(source) != recordio.CompressionNone {
		return nil, recordio.ErrCompressedSeek
	}

	ix, err := open(source, opts, true)
	if err != nil {
		return nil, err
	}
	if err := ix.build(ctx); err != nil {
		ix.Close()
		return nil, err
	}
	return ix, nil
}

// Open opens an existing index without modifying it. It fails with
// ErrStale when the record file no longer holds the frames that were
// indexed.
func Open(source string, opts Options) (*Index, error) {
	opts = opts.withDefaults(source)
	if _, err := os.Stat(opts.Dir); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, source)
	}

	ix, err := open(source, opts, false)
	if err != nil {
		return nil, err
	}
	if ix.meta.Source == "" {
		ix.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, source)
	}

	size, err := ix.sourceSize()
	if err != nil {
		ix.Close()
		return nil, err
	}
	if !ix.matches(size) {
		ix.Close()
		return nil, ErrStale
	}
	return ix, nil
}

func open(source string, opts Options, create bool) (*Index, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, err
	}

	db, err := pebble.Open(opts.Dir, &pebble.Options{
		ErrorIfNotExists: !create,
		Logger:           pebbleLogger{logger: opts.Logger},
	})
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to open index at %s: %w", opts.Dir, err)
	}

	ix := &Index{db: db, source: file, opts: opts}
	if err := ix.loadMeta(); err != nil {
		ix.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) loadMeta() error {
	value, closer, err := ix.db.Get(metaKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := json.Unmarshal(value, &ix.meta); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	return nil
}

func (ix *Index) sourceSize() (int64, error) {
	stat, err := ix.source.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

// matches reports whether the file still holds the first and last indexed
// frames where the index recorded them. Frames in between are not checked.
func (ix *Index) matches(size int64) bool {
	if ix.meta.Records == 0 {
		return true
	}
	if size < ix.meta.IndexedBytes {
		return false
	}

	head, _, ok := ix.checksumAt(0)
	if !ok || head != ix.meta.HeadChecksum {
		return false
	}
	tail, frame, ok := ix.checksumAt(ix.meta.TailOffset)
	return ok && tail == ix.meta.TailChecksum && ix.meta.TailOffset+frame == ix.meta.IndexedBytes
}

func (ix *Index) checksumAt(offset int64) (uint32, int64, bool) {
	payload, frame, err := recordio.ReadAt(ix.source, offset, recordio.WithMaxRecordSize(ix.opts.MaxRecordSize))
	if err != nil {
		return 0, 0, false
	}
	return codec.MaskedCRC32C(payload), frame, true
}

func (ix *Index) reset() error {
	if err := ix.db.DeleteRange([]byte{0x00}, []byte{0xff}, pebble.Sync); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	ix.meta = Meta{}
	return nil
}

func (ix *Index) build(ctx context.Context) error {
	size, err := ix.sourceSize()
	if err != nil {
		return err
	}

	if ix.meta.Source != "" && (ix.meta.KeyFeature != ix.opts.KeyFeature || !ix.matches(size)) {
		ix.opts.Logger.Info("rebuilding index",
			"source", ix.source.Name(),
			"indexed_bytes", ix.meta.IndexedBytes,
			"file_size", size,
			"key_feature", ix.opts.KeyFeature)
		if err := ix.reset(); err != nil {
			return err
		}
	}
	ix.meta.Source = ix.source.Name()
	ix.meta.KeyFeature = ix.opts.KeyFeature

	r, err := recordio.OpenFile(ix.source.Name(),
		recordio.WithCompression(recordio.CompressionNone),
		recordio.WithMaxRecordSize(ix.opts.MaxRecordSize))
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.Seek(ix.meta.IndexedBytes); err != nil {
		return err
	}

	start := time.Now()
	startRecords := ix.meta.Records
	batch := ix.db.NewBatch()
	pending := 0

	for {
		if err := ctx.Err(); err != nil {
			batch.Close()
			return err
		}

		offset := r.Offset()
		payload, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep what was indexed before the bad frame.
			if commitErr := ix.commit(batch); commitErr != nil {
				return errors.Join(err, commitErr)
			}
			return fmt.Errorf("failed to index %s: %w", ix.source.Name(), err)
		}

		if err := ix.add(batch, offset, payload, r.Offset()-offset); err != nil {
			batch.Close()
			return err
		}
		pending++

		if pending >= ix.opts.BatchSize {
			if err := ix.commit(batch); err != nil {
				return err
			}
			batch = ix.db.NewBatch()
			pending = 0
		}
	}

	if err := ix.commit(batch); err != nil {
		return err
	}

	ix.opts.Logger.Info("index built",
		"source", ix.source.Name(),
		"records", ix.meta.Records,
		"added", ix.meta.Records-startRecords,
		"key_feature", ix.meta.KeyFeature,
		"duration", time.Since(start))
	return nil
}

func (ix *Index) add(batch *pebble.Batch, offset int64, payload []byte, size int64) error {
	ordinal := ix.meta.Records
	if err := batch.Set(ordinalKey(ordinal), encodeLocation(offset, size), nil); err != nil {
		return err
	}

	if ix.meta.KeyFeature != "" {
		if key, ok := keyValue(payload, ix.meta.KeyFeature); ok {
			if err := batch.Set(lookupKey(farm.Fingerprint64(key), ordinal), nil, nil); err != nil {
				return err
			}
		}
	}

	checksum := codec.MaskedCRC32C(payload)
	if ordinal == 0 {
		ix.meta.HeadChecksum = checksum
	}
	ix.meta.Records++
	ix.meta.IndexedBytes = offset + size
	ix.meta.TailOffset = offset
	ix.meta.TailChecksum = checksum
	return nil
}

// commit writes batch together with the updated meta and closes it.
func (ix *Index) commit(batch *pebble.Batch) error {
	defer batch.Close()

	ix.meta.UpdatedAt = time.Now().UTC()
	meta, err := json.Marshal(ix.meta)
	if err != nil {
		return err
	}
	if err := batch.Set(metaKey, meta, nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit index batch: %w", err)
	}
	return nil
}

// keyValue returns the first value of the named BytesList feature.
// Payloads that are not feature maps have no key.
func keyValue(payload []byte, name string) ([]byte, bool) {
	m, err := feature.Decode(payload)
	if err != nil {
		return nil, false
	}
	f := m[name]
	if f.Kind() != feature.KindBytes || f.Len() == 0 {
		return nil, false
	}
	return f.Bytes()[0], true
}

// Check returns ErrStale when the path the index was opened with now names
// a different file, or when the file no longer holds the indexed frames.
func (ix *Index) Check() error {
	current, err := os.Stat(ix.source.Name())
	if err != nil {
		return err
	}
	opened, err := ix.source.Stat()
	if err != nil {
		return err
	}
	if !os.SameFile(current, opened) || !ix.matches(opened.Size()) {
		return ErrStale
	}
	return nil
}

// Meta returns what the index covers.
func (ix *Index) Meta() Meta {
	return ix.meta
}

// Len returns the number of indexed records.
func (ix *Index) Len() uint64 {
	return ix.meta.Records
}

// Entry returns the location of the record with the given ordinal.
func (ix *Index) Entry(ordinal uint64) (Entry, error) {
	value, closer, err := ix.db.Get(ordinalKey(ordinal))
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, fmt.Errorf("%w: ordinal %d", ErrNotFound, ordinal)
	}
	if err != nil {
		return Entry{}, err
	}
	defer closer.Close()

	offset, size, err := decodeLocation(value)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Ordinal: ordinal, Offset: offset, Size: size}, nil
}

// Entries returns up to limit entries starting at ordinal from.
func (ix *Index) Entries(from uint64, limit int) ([]Entry, error) {
	it, err := ix.db.NewIter(&pebble.IterOptions{
		LowerBound: ordinalKey(from),
		UpperBound: []byte{ordinalPrefix + 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer func() { _ = it.Close() }()

	var entries []Entry
	for ok := it.First(); ok && len(entries) < limit; ok = it.Next() {
		offset, size, err := decodeLocation(it.Value())
		if err != nil {
			return nil, err
		}
		ordinal, err := decodeOrdinal(it.Key())
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Ordinal: ordinal, Offset: offset, Size: size})
	}
	return entries, it.Error()
}

// Get returns the payload of the record with the given ordinal.
func (ix *Index) Get(ordinal uint64) ([]byte, error) {
	e, err := ix.Entry(ordinal)
	if err != nil {
		return nil, err
	}
	return ix.read(e)
}

func (ix *Index) read(e Entry) ([]byte, error) {
	payload, _, err := recordio.ReadAt(ix.source, e.Offset, recordio.WithMaxRecordSize(ix.opts.MaxRecordSize))
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", e.Ordinal, err)
	}
	return payload, nil
}

// Lookup returns the entries whose key feature's first value equals key,
// in ordinal order. Fingerprint collisions are resolved by reading the
// candidate records.
func (ix *Index) Lookup(key []byte) ([]Entry, error) {
	if ix.meta.KeyFeature == "" {
		return nil, ErrNoKeyFeature
	}

	lower, upper := lookupBounds(farm.Fingerprint64(key))
	it, err := ix.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer func() { _ = it.Close() }()

	var entries []Entry
	for ok := it.First(); ok; ok = it.Next() {
		ordinal, err := decodeLookupOrdinal(it.Key())
		if err != nil {
			return nil, err
		}
		e, err := ix.Entry(ordinal)
		if err != nil {
			return nil, err
		}
		payload, err := ix.read(e)
		if err != nil {
			return nil, err
		}
		if value, ok := keyValue(payload, ix.meta.KeyFeature); ok && bytes.Equal(value, key) {
			entries = append(entries, e)
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Close closes the database and the record file.
func (ix *Index) Close() error {
	var errs []error
	if ix.db != nil {
		errs = append(errs, ix.db.Close())
		ix.db = nil
	}
	if ix.source != nil {
		errs = append(errs, ix.source.Close())
		ix.source = nil
	}
	return errors.Join(errs...)
}
