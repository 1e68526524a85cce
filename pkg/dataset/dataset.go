// Package dataset reads and writes record files whose payloads are encoded
// feature maps.
package dataset

import (
	"fmt"
	"io"
	"iter"

	"github.com/ssargent/recordfile/pkg/feature"
	"github.com/ssargent/recordfile/pkg/recordio"
)

// Writer encodes feature maps and appends each as one record.
type Writer struct {
	records *recordio.Writer
	scratch []byte
}

// NewWriter returns a Writer that frames records onto w.
func NewWriter(w io.Writer, opts ...recordio.Option) (*Writer, error) {
	rw, err := recordio.NewWriter(w, opts...)
	if err != nil {
		return nil, err
	}
	return &Writer{records: rw}, nil
}

// WriteFeatures encodes m and appends it as one record.
func (w *Writer) WriteFeatures(m feature.Map) error {
	payload, err := feature.AppendEncode(w.scratch[:0], m)
	if err != nil {
		return err
	}
	w.scratch = payload
	return w.records.Write(payload)
}

// Flush pushes buffered records to the underlying stream.
func (w *Writer) Flush() error {
	return w.records.Flush()
}

// Close flushes and finishes the stream without closing it.
func (w *Writer) Close() error {
	return w.records.Close()
}

// Offset returns the byte offset of the next record.
func (w *Writer) Offset() int64 {
	return w.records.Offset()
}

// Count returns the number of records written.
func (w *Writer) Count() int64 {
	return w.records.Count()
}

// Reader decodes one feature map per record.
type Reader struct {
	records *recordio.Reader
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader, opts ...recordio.Option) (*Reader, error) {
	rr, err := recordio.NewReader(r, opts...)
	if err != nil {
		return nil, err
	}
	return &Reader{records: rr}, nil
}

// ReadFeatures returns the next feature map, or io.EOF at the end of the
// stream. Framing failures are sticky. A record that frames correctly but
// does not decode returns an error matching feature.ErrMalformedPayload,
// and reading may continue with the next record.
func (r *Reader) ReadFeatures() (feature.Map, error) {
	offset := r.records.Offset()
	payload, err := r.records.Next()
	if err != nil {
		return nil, err
	}

	m, err := feature.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("record at offset %d: %w", offset, err)
	}
	return m, nil
}

// All iterates over the remaining feature maps. Iteration stops at the end
// of the stream or after the first framing error; decode errors are yielded
// without stopping.
func (r *Reader) All() iter.Seq2[feature.Map, error] {
	return func(yield func(feature.Map, error) bool) {
		for {
			m, err := r.ReadFeatures()
			if err == io.EOF {
				return
			}
			if !yield(m, err) {
				return
			}
			if err != nil && r.records.Err() != nil {
				return
			}
		}
	}
}

// Offset returns the byte offset of the next record.
func (r *Reader) Offset() int64 {
	return r.records.Offset()
}

// Count returns the number of records consumed.
func (r *Reader) Count() int64 {
	return r.records.Count()
}

// Close releases the decompressor, if any.
func (r *Reader) Close() error {
	return r.records.Close()
}
