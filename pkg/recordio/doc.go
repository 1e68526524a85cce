// Package recordio reads and writes record files: sequences of frames as
// defined by package codec, optionally wrapped in whole-stream compression.
//
// # Writing
//
//	w, err := recordio.Create("train.recordfile")
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	for _, payload := range payloads {
//	    if err := w.Write(payload); err != nil {
//	        return err
//	    }
//	}
//
// Writes are buffered; Flush pushes them to the file and Sync also fsyncs.
// NewWriter wraps any io.Writer and never closes it. A Writer must not be
// shared between goroutines without external locking.
//
// # Reading
//
//	r, err := recordio.OpenFile("train.recordfile")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	for {
//	    payload, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err // corrupt or truncated
//	    }
//	    ...
//	}
//
// Every frame's length and payload checksums are verified. Failures are
// reported as *FrameError wrapping ErrCorruptLength, ErrCorruptPayload,
// ErrTruncated or ErrRecordTooLarge; stream failures as *IOError, which
// matches ErrIO. A reader never skips over a bad frame. Verify and Repair
// scan whole files and can truncate a torn tail.
//
// # Compression
//
// Gzip and zlib streams are compatible with TFRecord's GZIP and ZLIB
// options. Zstd and LZ4 are also supported. Offsets reported by readers and
// writers always refer to the uncompressed frame stream.
package recordio

// Extension is the conventional record file suffix.
const Extension = ".recordfile"
