package recordio

import (
	"math"

	"github.com/ssargent/recordfile/pkg/codec"
)

const (
	// DefaultBufferSize is the bufio size used by writers and readers.
	DefaultBufferSize = 64 * 1024
	// DefaultMaxRecordSize bounds the payload length a reader will allocate.
	DefaultMaxRecordSize = 256 << 20
	// MaxRecordSizeLimit is the largest usable MaxRecordSize. Larger values
	// are clamped to it.
	MaxRecordSizeLimit = math.MaxInt - codec.FooterSize
)

// Observer receives record-level events. Implementations must be cheap;
// they run inline with every Write and Next.
type Observer interface {
	RecordWritten(payloadBytes int)
	RecordRead(payloadBytes int)
	RecordFailed(op string, err error)
}

type noopObserver struct{}

func (noopObserver) RecordWritten(int)          {}
func (noopObserver) RecordRead(int)             {}
func (noopObserver) RecordFailed(string, error) {}

// Options configures writers and readers.
type Options struct {
	Compression      Compression // Whole-stream compression
	CompressionLevel int         // 0 selects the codec default
	BufferSize       int         // bufio size in bytes
	MaxRecordSize    uint64      // Largest payload a reader or writer accepts
	SyncOnClose      bool        // FileWriter fsyncs before closing
	Observer         Observer    // Optional event sink

	compressionSet bool
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Compression:   CompressionNone,
		BufferSize:    DefaultBufferSize,
		MaxRecordSize: DefaultMaxRecordSize,
		Observer:      noopObserver{},
	}
}

// Option mutates Options.
type Option func(*Options)

// WithOptions replaces all options with o. Later options still apply.
func WithOptions(o Options) Option {
	return func(dst *Options) {
		set := dst.compressionSet || o.Compression != CompressionNone
		*dst = o
		dst.compressionSet = set
	}
}

// WithCompression selects whole-stream compression.
func WithCompression(c Compression) Option {
	return func(o *Options) {
		o.Compression = c
		o.compressionSet = true
	}
}

// WithCompressionLevel sets a codec-specific compression level.
func WithCompressionLevel(level int) Option {
	return func(o *Options) {
		o.CompressionLevel = level
	}
}

// WithBufferSize sets the bufio size.
func WithBufferSize(n int) Option {
	return func(o *Options) {
		o.BufferSize = n
	}
}

// WithMaxRecordSize bounds the payload length accepted by readers and
// writers.
func WithMaxRecordSize(n uint64) Option {
	return func(o *Options) {
		o.MaxRecordSize = n
	}
}

// WithSyncOnClose makes FileWriter.Close fsync the file.
func WithSyncOnClose(sync bool) Option {
	return func(o *Options) {
		o.SyncOnClose = sync
	}
}

// WithObserver installs an event sink.
func WithObserver(obs Observer) Option {
	return func(o *Options) {
		o.Observer = obs
	}
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.MaxRecordSize == 0 {
		o.MaxRecordSize = DefaultMaxRecordSize
	}
	if o.MaxRecordSize > MaxRecordSizeLimit {
		o.MaxRecordSize = MaxRecordSizeLimit
	}
	if o.Observer == nil {
		o.Observer = noopObserver{}
	}
	return o
}

// withPathDefaults infers compression from the file name unless it was set.
func withPathDefaults(path string, opts []Option) Options {
	o := buildOptions(opts)
	if !o.compressionSet {
		o.Compression = CompressionFromPath(path)
	}
	return o
}
