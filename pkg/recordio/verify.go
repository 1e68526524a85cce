package recordio

import (
	"context"
	"errors"
	"io"
	"os"
	"time"
)

// VerifyResult summarizes a full scan of a record file.
type VerifyResult struct {
	Path        string        `json:"path" yaml:"path"`
	Compression Compression   `json:"compression" yaml:"compression"`
	Records     int64         `json:"records" yaml:"records"`         // Valid frames before the first failure
	ValidBytes  int64         `json:"valid_bytes" yaml:"valid_bytes"` // Uncompressed offset after the last valid frame
	FileSize    int64         `json:"file_size" yaml:"file_size"`     // Size on disk
	Err         error         `json:"-" yaml:"-"`                     // First integrity or read failure
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// OK reports whether every frame in the file is valid.
func (v *VerifyResult) OK() bool {
	return v.Err == nil
}

// Error returns the failure message, or "".
func (v *VerifyResult) Error() string {
	if v.Err == nil {
		return ""
	}
	return v.Err.Error()
}

// Verify scans path and validates every frame. Integrity failures are
// reported in the result; the returned error is reserved for failing to
// open the file and for context cancellation.
func Verify(ctx context.Context, path string, opts ...Option) (*VerifyResult, error) {
	start := time.Now()

	r, err := OpenFile(path, opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	size, err := r.Size()
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{
		Path:        path,
		Compression: r.Compression(),
		FileSize:    size,
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := r.Next(); err != nil {
			if err != io.EOF {
				result.Err = err
			}
			break
		}
	}

	result.Records = r.Count()
	result.ValidBytes = r.Offset()
	result.Duration = time.Since(start)

	return result, nil
}

// RepairReport describes what Repair changed.
type RepairReport struct {
	*VerifyResult
	BytesTruncated int64 `json:"bytes_truncated" yaml:"bytes_truncated"`
	Repaired       bool  `json:"repaired" yaml:"repaired"`
}

// Repair verifies path and, if a corrupt or torn frame is found, truncates
// the file back to the end of the last valid frame. Everything from the
// first bad frame onward is discarded. Only uncompressed files can be
// repaired. A frame larger than the configured MaxRecordSize is not damage
// and is returned as an error without touching the file.
func Repair(ctx context.Context, path string, opts ...Option) (*RepairReport, error) {
	result, err := Verify(ctx, path, opts...)
	if err != nil {
		return nil, err
	}

	report := &RepairReport{VerifyResult: result}
	if result.OK() {
		return report, nil
	}
	if !IsCorruption(result.Err) || errors.Is(result.Err, ErrRecordTooLarge) {
		// Read failures and size limits say nothing about the bytes on disk.
		return report, result.Err
	}
	if result.Compression != CompressionNone {
		return report, ErrCompressedSeek
	}

	if err := os.Truncate(path, result.ValidBytes); err != nil {
		return report, &IOError{Op: "truncate", Offset: result.ValidBytes, Err: err}
	}

	report.BytesTruncated = result.FileSize - result.ValidBytes
	report.Repaired = true
	return report, nil
}
