package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ssargent/recordfile/pkg/dataset"
	"github.com/ssargent/recordfile/pkg/feature"
	"github.com/ssargent/recordfile/pkg/index"
	"github.com/ssargent/recordfile/pkg/recordio"
)

// ErrInvalidName is returned for file names outside the data directory or
// without a record file extension.
var ErrInvalidName = errors.New("invalid record file name")

var recordExtensions = []string{recordio.Extension, ".tfrecord", ".tfrecords"}

// IsRecordFileName reports whether name ends in a record file extension,
// optionally followed by a compression suffix.
func IsRecordFileName(name string) bool {
	base := name
	if c := recordio.CompressionFromPath(name); c != recordio.CompressionNone {
		base = strings.TrimSuffix(name, filepath.Ext(name))
	}
	for _, ext := range recordExtensions {
		if strings.HasSuffix(base, ext) && len(base) > len(ext) {
			return true
		}
	}
	return false
}

// DirStoreOptions configures a DirStore
type DirStoreOptions struct {
	ReaderOptions []recordio.Option
	WriterOptions []recordio.Option
	IndexOptions  index.Options
	Observer      recordio.Observer
}

// DirStore serves the record files of one directory. Appends to the same
// file are serialized; reads run concurrently.
type DirStore struct {
	dir        string
	readerOpts []recordio.Option
	writerOpts []recordio.Option
	indexOpts  index.Options

	locks sync.Map // file name -> *sync.Mutex

	mu      sync.Mutex
	indexes map[string]*index.Index
}

// NewDirStore creates dir if needed and returns a store rooted there.
func NewDirStore(dir string, opts DirStoreOptions) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	readerOpts := append([]recordio.Option(nil), opts.ReaderOptions...)
	writerOpts := append([]recordio.Option(nil), opts.WriterOptions...)
	if opts.Observer != nil {
		readerOpts = append(readerOpts, recordio.WithObserver(opts.Observer))
		writerOpts = append(writerOpts, recordio.WithObserver(opts.Observer))
	}

	return &DirStore{
		dir:        dir,
		readerOpts: readerOpts,
		writerOpts: writerOpts,
		indexOpts:  opts.IndexOptions,
		indexes:    make(map[string]*index.Index),
	}, nil
}

func (d *DirStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || !IsRecordFileName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(d.dir, name), nil
}

// List returns the record files in the directory sorted by name.
func (d *DirStore) List(ctx context.Context) ([]FileInfo, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsRecordFileName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // Removed while listing
		}
		path := filepath.Join(d.dir, entry.Name())
		_, statErr := os.Stat(path + index.DirSuffix)
		files = append(files, FileInfo{
			Name:        entry.Name(),
			Size:        info.Size(),
			Compression: recordio.CompressionFromPath(entry.Name()),
			Indexed:     statErr == nil,
			ModTime:     info.ModTime().UTC(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Records returns up to limit records starting at ordinal offset. When the
// file has an index the read starts at the indexed frame instead of
// scanning from the beginning.
func (d *DirStore) Records(ctx context.Context, name string, offset uint64, limit int) (*RecordsPage, error) {
	path, err := d.path(name)
	if err != nil {
		return nil, err
	}

	r, err := recordio.OpenFile(path, d.readerOpts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	ordinal := uint64(0)
	if r.Compression() == recordio.CompressionNone {
		if startOrdinal, startOffset, ok := d.seekHint(path, offset); ok {
			if err := r.Seek(startOffset); err != nil {
				return nil, err
			}
			ordinal = startOrdinal
		}
	}

	page := &RecordsPage{File: name, Offset: offset, Limit: limit, Records: []RecordView{}}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frameOffset := r.Offset()
		payload, err := r.Next()
		if err == io.EOF {
			return page, nil
		}
		if err != nil {
			if len(page.Records) == 0 && ordinal <= offset {
				return nil, err
			}
			page.Error = err.Error()
			return page, nil
		}

		if ordinal >= offset {
			if len(page.Records) == limit {
				page.More = true
				return page, nil
			}
			view := RecordView{Ordinal: ordinal, Offset: frameOffset}
			if m, err := feature.Decode(payload); err == nil {
				view.Features = m
			} else {
				view.Raw = payload
			}
			page.Records = append(page.Records, view)
		}
		ordinal++
	}
}

// seekHint returns the closest indexed position at or before ordinal.
func (d *DirStore) seekHint(path string, ordinal uint64) (uint64, int64, bool) {
	ix := d.openIndex(path)
	if ix == nil {
		return 0, 0, false
	}
	if err := ix.Check(); err != nil {
		// A rewritten file is scanned from the start.
		return 0, 0, false
	}
	if ordinal < ix.Len() {
		e, err := ix.Entry(ordinal)
		if err != nil {
			return 0, 0, false
		}
		return ordinal, e.Offset, true
	}
	meta := ix.Meta()
	return meta.Records, meta.IndexedBytes, true
}

// openIndex returns the cached index for path, opening it on first use.
// Files without a usable index return nil.
func (d *DirStore) openIndex(path string) *index.Index {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ix, ok := d.indexes[path]; ok {
		return ix
	}
	ix, err := index.Open(path, d.indexOpts)
	if err != nil {
		return nil
	}
	d.indexes[path] = ix
	return ix
}

func (d *DirStore) lock(name string) *sync.Mutex {
	mu, _ := d.locks.LoadOrStore(name, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Append encodes m and appends it to name, creating the file if needed.
func (d *DirStore) Append(ctx context.Context, name string, m feature.Map) (*AppendResult, error) {
	path, err := d.path(name)
	if err != nil {
		return nil, err
	}

	mu := d.lock(name)
	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, err := dataset.OpenAppend(path, d.writerOpts...)
	if err != nil {
		return nil, err
	}

	offset := w.Offset()
	if err := w.WriteFeatures(m); err != nil {
		w.Close()
		return nil, err
	}
	size := w.Offset() - offset
	if err := w.Close(); err != nil {
		return nil, err
	}

	return &AppendResult{File: name, Offset: offset, Size: size}, nil
}

// Verify scans name and validates every frame.
func (d *DirStore) Verify(ctx context.Context, name string) (*recordio.VerifyResult, error) {
	path, err := d.path(name)
	if err != nil {
		return nil, err
	}
	return recordio.Verify(ctx, path, d.readerOpts...)
}

// Close releases cached indexes.
func (d *DirStore) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for path, ix := range d.indexes {
		errs = append(errs, ix.Close())
		delete(d.indexes, path)
	}
	return errors.Join(errs...)
}
