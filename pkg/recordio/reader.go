package recordio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/ssargent/recordfile/pkg/codec"
)

// Reader extracts payloads from a frame stream, validating both checksums
// of every frame. It does not resynchronize: after the first failure every
// call to Next returns the same error.
type Reader struct {
	src    io.Reader
	decomp io.ReadCloser // nil when uncompressed
	buf    *bufio.Reader
	opts   Options
	offset int64 // Uncompressed offset of the next frame
	count  int64
	err    error
	closed bool

	header [codec.HeaderSize]byte
}

// NewReader returns a reader over r. Closing the Reader does not close r.
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	return newReader(r, buildOptions(opts))
}

func newReader(r io.Reader, o Options) (*Reader, error) {
	reader := &Reader{src: r, opts: o}

	source := r
	if o.Compression != CompressionNone {
		decomp, err := newDecompressor(r, o.Compression)
		if err != nil {
			return nil, &IOError{Op: "open " + o.Compression.String(), Err: err}
		}
		reader.decomp = decomp
		source = decomp
	}
	reader.buf = bufio.NewReaderSize(source, o.BufferSize)

	return reader, nil
}

// Next returns the next payload. It returns io.EOF when the stream ends
// cleanly on a frame boundary. The returned slice is owned by the caller.
func (r *Reader) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.closed {
		r.err = io.EOF
		return nil, r.err
	}

	start := r.offset

	n, err := io.ReadFull(r.buf, r.header[:])
	switch {
	case err == io.EOF:
		r.err = io.EOF
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, r.fail(start, fmt.Errorf("%w: %d of %d header bytes", ErrTruncated, n, codec.HeaderSize))
	case err != nil:
		return nil, r.failIO(start, err)
	}

	h, err := codec.DecodeHeader(r.header[:])
	if err != nil {
		return nil, r.fail(start, err)
	}
	if h.Length > r.opts.MaxRecordSize {
		return nil, r.fail(start, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrRecordTooLarge, h.Length, r.opts.MaxRecordSize))
	}

	// Payload and its checksum are read together.
	body, read, err := readBody(r.buf, h.Length)
	switch {
	case err == io.EOF, errors.Is(err, io.ErrUnexpectedEOF):
		return nil, r.fail(start, fmt.Errorf("%w: frame declares %d payload bytes, %d of %d remain", ErrTruncated, h.Length, read, h.Length+codec.FooterSize))
	case err != nil:
		return nil, r.failIO(start, err)
	}

	payload := body[:h.Length:h.Length]
	if err := codec.VerifyPayload(payload, body[h.Length:]); err != nil {
		return nil, r.fail(start, err)
	}

	r.offset += int64(codec.FrameSize(len(payload)))
	r.count++
	r.opts.Observer.RecordRead(len(payload))

	return payload, nil
}

func (r *Reader) fail(offset int64, err error) error {
	r.err = &FrameError{Offset: offset, Err: err}
	r.opts.Observer.RecordFailed("read", r.err)
	return r.err
}

func (r *Reader) failIO(offset int64, err error) error {
	r.err = &IOError{Op: "read", Offset: offset, Err: err}
	r.opts.Observer.RecordFailed("read", r.err)
	return r.err
}

// Offset returns the uncompressed byte offset of the next frame. After a
// failure it is the offset of the frame that failed.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Count returns the number of payloads returned so far.
func (r *Reader) Count() int64 {
	return r.count
}

// Err returns the sticky error, or nil. A clean end of stream is io.EOF.
func (r *Reader) Err() error {
	return r.err
}

// Compression returns the stream compression.
func (r *Reader) Compression() Compression {
	return r.opts.Compression
}

// Close releases the decompressor. The underlying stream is left open.
// Closing is idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.decomp != nil {
		return r.decomp.Close()
	}
	return nil
}

// All returns an iterator over the remaining payloads. Iteration stops at
// the end of the stream or after yielding the first error.
func (r *Reader) All() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			payload, err := r.Next()
			if err == io.EOF {
				return
			}
			if !yield(payload, err) || err != nil {
				return
			}
		}
	}
}

// Iterator returns a cursor-style iterator over the remaining payloads.
func (r *Reader) Iterator() *Iterator {
	return &Iterator{reader: r}
}

// Iterator walks a Reader:
//
//	it := r.Iterator()
//	for it.Next() {
//	    use(it.Record())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	reader *Reader
	record []byte
	offset int64
	err    error
}

func (it *Iterator) Next() bool {
	offset := it.reader.Offset()
	record, err := it.reader.Next()
	if err != nil {
		if err != io.EOF {
			it.err = err
		}
		it.record = nil
		return false
	}
	it.record = record
	it.offset = offset
	return true
}

func (it *Iterator) Record() []byte {
	return it.record
}

// Offset returns the frame offset of the current record.
func (it *Iterator) Offset() int64 {
	return it.offset
}

// Err returns the failure that stopped iteration, or nil at a clean end.
func (it *Iterator) Err() error {
	return it.err
}

// FileReader is a Reader that owns its file.
type FileReader struct {
	*Reader
	file *os.File
	path string
}

// OpenFile opens path for sequential reading. Compression is inferred from
// the file suffix unless set explicitly.
func OpenFile(path string, opts ...Option) (*FileReader, error) {
	o := withPathDefaults(path, opts)

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r, err := newReader(file, o)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &FileReader{Reader: r, file: file, path: path}, nil
}

// Seek repositions an uncompressed reader at a frame boundary and clears
// any sticky error. Count restarts at zero.
func (fr *FileReader) Seek(offset int64) error {
	if fr.decomp != nil {
		return ErrCompressedSeek
	}
	if _, err := fr.file.Seek(offset, io.SeekStart); err != nil {
		return &IOError{Op: "seek", Offset: offset, Err: err}
	}

	fr.buf.Reset(fr.file)
	fr.offset = offset
	fr.count = 0
	fr.err = nil
	fr.closed = false
	return nil
}

// Size returns the size of the file on disk.
func (fr *FileReader) Size() (int64, error) {
	stat, err := fr.file.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

// Path returns the file path.
func (fr *FileReader) Path() string {
	return fr.path
}

// Close releases the decompressor and closes the file.
func (fr *FileReader) Close() error {
	if fr.file == nil {
		return nil
	}

	err := fr.Reader.Close()
	if closeErr := fr.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	fr.file = nil
	return err
}

// ReadAt reads the single frame starting at offset in an uncompressed
// stream. It returns the payload and the total frame size. Reading exactly
// at the end of the stream returns io.EOF.
func ReadAt(ra io.ReaderAt, offset int64, opts ...Option) ([]byte, int64, error) {
	o := buildOptions(opts)

	var header [codec.HeaderSize]byte
	n, err := ra.ReadAt(header[:], offset)
	if n < len(header) {
		switch {
		case n == 0 && err == io.EOF:
			return nil, 0, io.EOF
		case err == nil || err == io.EOF:
			return nil, 0, &FrameError{Offset: offset, Err: fmt.Errorf("%w: %d of %d header bytes", ErrTruncated, n, codec.HeaderSize)}
		default:
			return nil, 0, &IOError{Op: "read", Offset: offset, Err: err}
		}
	}

	h, err := codec.DecodeHeader(header[:])
	if err != nil {
		return nil, 0, &FrameError{Offset: offset, Err: err}
	}
	if h.Length > o.MaxRecordSize {
		return nil, 0, &FrameError{Offset: offset, Err: fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrRecordTooLarge, h.Length, o.MaxRecordSize)}
	}

	section := io.NewSectionReader(ra, offset+codec.HeaderSize, int64(h.Length)+codec.FooterSize)
	body, read, err := readBody(section, h.Length)
	switch {
	case err == io.EOF, errors.Is(err, io.ErrUnexpectedEOF):
		return nil, 0, &FrameError{Offset: offset, Err: fmt.Errorf("%w: frame declares %d payload bytes, %d of %d remain", ErrTruncated, h.Length, read, h.Length+codec.FooterSize)}
	case err != nil:
		return nil, 0, &IOError{Op: "read", Offset: offset, Err: err}
	}

	payload := body[:h.Length:h.Length]
	if err := codec.VerifyPayload(payload, body[h.Length:]); err != nil {
		return nil, 0, &FrameError{Offset: offset, Err: err}
	}

	o.Observer.RecordRead(len(payload))
	return payload, int64(codec.FrameSize(len(payload))), nil
}

// preallocLimit is the largest body allocated up front. Longer frames grow
// their buffer as bytes arrive, so a lying length field on a short stream
// cannot force a huge allocation.
const preallocLimit = 1 << 20

// readBody reads a payload of length bytes and its checksum from r. The
// length must already be bounded by MaxRecordSizeLimit. It returns the
// number of bytes read and io.EOF or io.ErrUnexpectedEOF on a short read.
func readBody(r io.Reader, length uint64) ([]byte, int64, error) {
	want := int64(length) + codec.FooterSize
	if want <= preallocLimit {
		body := make([]byte, want)
		n, err := io.ReadFull(r, body)
		return body, int64(n), err
	}

	var buf bytes.Buffer
	buf.Grow(preallocLimit)
	n, err := io.CopyN(&buf, r, want)
	return buf.Bytes(), n, err
}
