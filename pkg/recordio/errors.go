package recordio

import (
	"errors"
	"fmt"

	"github.com/ssargent/recordfile/pkg/codec"
)

// Frame errors, re-exported from codec so callers need a single import.
var (
	ErrCorruptLength  = codec.ErrCorruptLength
	ErrCorruptPayload = codec.ErrCorruptPayload
	ErrTruncated      = codec.ErrTruncated
	ErrRecordTooLarge = codec.ErrRecordTooLarge
)

var (
	// ErrIO matches every *IOError via errors.Is.
	ErrIO = errors.New("record stream I/O failure")
	// ErrClosed is wrapped in the IOError returned by a closed writer.
	ErrClosed = errors.New("record writer is closed")
	// ErrCompressedSeek is returned for operations that need byte offsets
	// into the file and therefore cannot work on compressed streams.
	ErrCompressedSeek = errors.New("operation requires an uncompressed record file")
)

// IOError reports a failure of the underlying stream.
type IOError struct {
	Op     string // "write", "flush", "read", ...
	Offset int64  // Uncompressed offset of the frame being processed
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("record %s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrIO) true for every IOError.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// FrameError reports an integrity failure of the frame starting at Offset.
type FrameError struct {
	Offset int64
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("record at offset %d: %v", e.Offset, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsCorruption reports whether err is an integrity failure rather than an
// I/O failure.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrCorruptLength) ||
		errors.Is(err, ErrCorruptPayload) ||
		errors.Is(err, ErrTruncated) ||
		errors.Is(err, ErrRecordTooLarge)
}
