package dataset

import (
	"io"

	"github.com/ssargent/recordfile/pkg/feature"
	"github.com/ssargent/recordfile/pkg/recordio"
)

// FileWriter is a Writer that owns its file.
type FileWriter struct {
	*Writer
	file *recordio.FileWriter
}

// Create creates or truncates a feature record file.
func Create(path string, opts ...recordio.Option) (*FileWriter, error) {
	fw, err := recordio.Create(path, opts...)
	if err != nil {
		return nil, err
	}
	return &FileWriter{Writer: &Writer{records: fw.Writer}, file: fw}, nil
}

// OpenAppend opens an uncompressed feature record file for appending.
func OpenAppend(path string, opts ...recordio.Option) (*FileWriter, error) {
	fw, err := recordio.OpenAppend(path, opts...)
	if err != nil {
		return nil, err
	}
	return &FileWriter{Writer: &Writer{records: fw.Writer}, file: fw}, nil
}

// Sync flushes and fsyncs the file.
func (w *FileWriter) Sync() error {
	return w.file.Sync()
}

// Close flushes and closes the file.
func (w *FileWriter) Close() error {
	return w.file.Close()
}

// Path returns the file path.
func (w *FileWriter) Path() string {
	return w.file.Path()
}

// FileReader is a Reader that owns its file.
type FileReader struct {
	*Reader
	file *recordio.FileReader
}

// Open opens a feature record file for reading.
func Open(path string, opts ...recordio.Option) (*FileReader, error) {
	fr, err := recordio.OpenFile(path, opts...)
	if err != nil {
		return nil, err
	}
	return &FileReader{Reader: &Reader{records: fr.Reader}, file: fr}, nil
}

// Close closes the file.
func (r *FileReader) Close() error {
	return r.file.Close()
}

// Path returns the file path.
func (r *FileReader) Path() string {
	return r.file.Path()
}

// WriteFile writes maps to a new file at path, replacing any existing file.
func WriteFile(path string, maps []feature.Map, opts ...recordio.Option) (err error) {
	w, err := Create(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := w.Close(); err == nil {
			err = closeErr
		}
	}()

	for _, m := range maps {
		if err := w.WriteFeatures(m); err != nil {
			return err
		}
	}
	return nil
}

// ReadFile decodes every record in path. On failure it returns the maps
// decoded before the bad record together with the error.
func ReadFile(path string, opts ...recordio.Option) ([]feature.Map, error) {
	r, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var maps []feature.Map
	for {
		m, err := r.ReadFeatures()
		if err == io.EOF {
			return maps, nil
		}
		if err != nil {
			return maps, err
		}
		maps = append(maps, m)
	}
}
