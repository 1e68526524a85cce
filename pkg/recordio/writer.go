package recordio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ssargent/recordfile/pkg/codec"
)

// Writer appends framed records to a stream. It is not safe for concurrent
// use; callers sharing a stream must serialize access.
type Writer struct {
	dst    io.Writer
	comp   compressor // nil when uncompressed
	buf    *bufio.Writer
	opts   Options
	offset int64 // Uncompressed offset of the next frame
	count  int64
	err    error // Sticky failure
	closed bool

	header [codec.HeaderSize]byte
	footer [codec.FooterSize]byte
}

// NewWriter returns a writer that appends frames to w. Closing the Writer
// does not close w.
func NewWriter(w io.Writer, opts ...Option) (*Writer, error) {
	return newWriter(w, buildOptions(opts), 0)
}

func newWriter(w io.Writer, o Options, offset int64) (*Writer, error) {
	writer := &Writer{
		dst:    w,
		opts:   o,
		offset: offset,
	}

	sink := w
	if o.Compression != CompressionNone {
		comp, err := newCompressor(w, o.Compression, o.CompressionLevel)
		if err != nil {
			return nil, err
		}
		writer.comp = comp
		sink = comp
	}
	writer.buf = bufio.NewWriterSize(sink, o.BufferSize)

	return writer, nil
}

// Write appends payload as one frame. Once a write fails, every later call
// returns the same error. Payloads longer than MaxRecordSize are refused
// with ErrRecordTooLarge before anything is written, so the stream stays
// usable; the limit matches what a reader with the same options accepts.
func (w *Writer) Write(payload []byte) error {
	if w.closed {
		return &IOError{Op: "write", Offset: w.offset, Err: ErrClosed}
	}
	if w.err != nil {
		return w.err
	}
	if uint64(len(payload)) > w.opts.MaxRecordSize {
		err := fmt.Errorf("%w: %d byte payload exceeds limit of %d", ErrRecordTooLarge, len(payload), w.opts.MaxRecordSize)
		w.opts.Observer.RecordFailed("write", err)
		return err
	}

	codec.NewHeader(len(payload)).Encode(w.header[:])
	binary.LittleEndian.PutUint32(w.footer[:], codec.MaskedCRC32C(payload))

	for _, part := range [][]byte{w.header[:], payload, w.footer[:]} {
		if _, err := w.buf.Write(part); err != nil {
			return w.fail("write", err)
		}
	}

	w.offset += int64(codec.FrameSize(len(payload)))
	w.count++
	w.opts.Observer.RecordWritten(len(payload))

	return nil
}

// Flush pushes buffered frames, through the compressor if any, to the
// underlying stream.
func (w *Writer) Flush() error {
	if w.closed {
		return nil
	}
	if w.err != nil {
		return w.err
	}
	return w.flush()
}

func (w *Writer) flush() error {
	if err := w.buf.Flush(); err != nil {
		return w.fail("flush", err)
	}
	if w.comp != nil {
		if err := w.comp.Flush(); err != nil {
			return w.fail("flush", err)
		}
	}
	return nil
}

// Close flushes buffered frames and finishes the compressed stream. It does
// not close the underlying stream. Closing twice is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.err != nil {
		return w.err
	}
	if err := w.buf.Flush(); err != nil {
		return w.fail("flush", err)
	}
	if w.comp != nil {
		if err := w.comp.Close(); err != nil {
			return w.fail("close", err)
		}
	}
	return nil
}

func (w *Writer) fail(op string, err error) error {
	w.err = &IOError{Op: op, Offset: w.offset, Err: err}
	w.opts.Observer.RecordFailed(op, w.err)
	return w.err
}

// Offset returns the uncompressed byte offset at which the next frame starts.
func (w *Writer) Offset() int64 {
	return w.offset
}

// Count returns the number of frames written.
func (w *Writer) Count() int64 {
	return w.count
}

// Compression returns the stream compression.
func (w *Writer) Compression() Compression {
	return w.opts.Compression
}

// FileWriter is a Writer that owns its file.
type FileWriter struct {
	*Writer
	file *os.File
	path string
}

// Create creates or truncates the file at path. Compression is inferred from
// the file suffix unless set explicitly.
func Create(path string, opts ...Option) (*FileWriter, error) {
	o := withPathDefaults(path, opts)
	return openFileWriter(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, o)
}

// OpenAppend opens path for appending, creating it if needed. Appending is
// limited to uncompressed files so frame offsets stay meaningful. The
// existing frame headers are walked first; a file that does not end on a
// frame boundary, such as one torn by a crash, is refused with a
// *FrameError so new frames are never written behind a broken one. Run
// Repair to cut the damaged tail.
func OpenAppend(path string, opts ...Option) (*FileWriter, error) {
	o := withPathDefaults(path, opts)
	if o.Compression != CompressionNone {
		return nil, ErrCompressedSeek
	}
	return openFileWriter(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, o)
}

// checkBoundary walks frame headers from the start of f and fails unless
// size falls exactly on a frame boundary. Payload checksums are not read.
func checkBoundary(f io.ReaderAt, size int64) error {
	var header [codec.HeaderSize]byte
	var offset int64

	for offset < size {
		remaining := size - offset
		if remaining < codec.HeaderSize {
			return &FrameError{Offset: offset, Err: fmt.Errorf("%w: %d of %d header bytes", ErrTruncated, remaining, codec.HeaderSize)}
		}
		if _, err := f.ReadAt(header[:], offset); err != nil {
			return &IOError{Op: "read", Offset: offset, Err: err}
		}

		h, err := codec.DecodeHeader(header[:])
		if err != nil {
			return &FrameError{Offset: offset, Err: err}
		}

		body := uint64(remaining - codec.HeaderSize)
		if body < codec.FooterSize || h.Length > body-codec.FooterSize {
			return &FrameError{Offset: offset, Err: fmt.Errorf("%w: frame declares %d payload bytes, %d remain", ErrTruncated, h.Length, body)}
		}
		offset += codec.HeaderSize + int64(h.Length) + codec.FooterSize
	}
	return nil
}

func openFileWriter(path string, flag int, o Options) (*FileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	var offset int64
	if flag&os.O_APPEND != 0 {
		offset = stat.Size()
		if err := checkBoundary(file, offset); err != nil {
			file.Close()
			return nil, err
		}
	}

	w, err := newWriter(file, o, offset)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &FileWriter{Writer: w, file: file, path: path}, nil
}

// Sync flushes buffered frames and fsyncs the file.
func (fw *FileWriter) Sync() error {
	if err := fw.Writer.Flush(); err != nil {
		return err
	}
	if err := fw.file.Sync(); err != nil {
		return &IOError{Op: "sync", Offset: fw.offset, Err: err}
	}
	return nil
}

// Close flushes, optionally fsyncs, and closes the file. The file is closed
// even when flushing fails.
func (fw *FileWriter) Close() error {
	if fw.file == nil {
		return nil
	}

	err := fw.Writer.Close()
	if err == nil && fw.opts.SyncOnClose {
		if syncErr := fw.file.Sync(); syncErr != nil {
			err = &IOError{Op: "sync", Offset: fw.offset, Err: syncErr}
		}
	}
	if closeErr := fw.file.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		if err == nil {
			err = &IOError{Op: "close", Offset: fw.offset, Err: closeErr}
		}
	}
	fw.file = nil

	return err
}

// Path returns the file path.
func (fw *FileWriter) Path() string {
	return fw.path
}
