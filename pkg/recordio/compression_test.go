package recordio

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allCompressions = []Compression{
	CompressionNone,
	CompressionGzip,
	CompressionZlib,
	CompressionZstd,
	CompressionLZ4,
}

func TestCompression_RoundTrip(t *testing.T) {
	payloads := make([][]byte, 0, 50)
	for i := 0; i < 50; i++ {
		payloads = append(payloads, bytes.Repeat([]byte(fmt.Sprintf("record-%d;", i)), i))
	}

	for _, c := range allCompressions {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, WithCompression(c))
			require.NoError(t, err)
			assert.Equal(t, c, w.Compression())

			for _, p := range payloads {
				require.NoError(t, w.Write(p))
			}
			require.NoError(t, w.Close())

			r, err := NewReader(bytes.NewReader(buf.Bytes()), WithCompression(c))
			require.NoError(t, err)
			defer r.Close()

			got, err := readAll(t, r)
			require.NoError(t, err)
			require.Len(t, got, len(payloads))
			for i := range payloads {
				assert.True(t, bytes.Equal(payloads[i], got[i]), "payload %d", i)
			}
			assert.Equal(t, w.Offset(), r.Offset(), "offsets are uncompressed")
		})
	}
}

func TestCompression_FlushMidStream(t *testing.T) {
	for _, c := range allCompressions {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, WithCompression(c))
			require.NoError(t, err)

			require.NoError(t, w.Write([]byte("one")))
			require.NoError(t, w.Flush())
			assert.Positive(t, buf.Len())

			require.NoError(t, w.Write([]byte("two")))
			require.NoError(t, w.Close())

			r, err := NewReader(&buf, WithCompression(c))
			require.NoError(t, err)
			got, err := readAll(t, r)
			require.NoError(t, err)
			assert.Len(t, got, 2)
		})
	}
}

func TestCompression_Levels(t *testing.T) {
	cases := []struct {
		c     Compression
		level int
	}{
		{CompressionGzip, 1},
		{CompressionGzip, 9},
		{CompressionZlib, 9},
		{CompressionZstd, 1},
		{CompressionZstd, 19},
		{CompressionLZ4, 9},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s-%d", tc.c, tc.level), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, WithCompression(tc.c), WithCompressionLevel(tc.level))
			require.NoError(t, err)
			require.NoError(t, w.Write(bytes.Repeat([]byte("z"), 4096)))
			require.NoError(t, w.Close())

			r, err := NewReader(&buf, WithCompression(tc.c))
			require.NoError(t, err)
			p, err := r.Next()
			require.NoError(t, err)
			assert.Len(t, p, 4096)
		})
	}
}

func TestCompression_InvalidLevel(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, WithCompression(CompressionLZ4), WithCompressionLevel(42))
	assert.Error(t, err)

	_, err = NewWriter(&bytes.Buffer{}, WithCompression(CompressionGzip), WithCompressionLevel(42))
	assert.Error(t, err)
}

func TestCompression_Unsupported(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, WithCompression(Compression(99)))
	assert.Error(t, err)

	_, err = NewReader(&bytes.Buffer{}, WithCompression(Compression(99)))
	assert.ErrorIs(t, err, ErrIO)
}

func TestCompression_WrongCodecOnRead(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("definitely not gzip")), WithCompression(CompressionGzip))
	assert.ErrorIs(t, err, ErrIO)
}

func TestParseCompression(t *testing.T) {
	cases := map[string]Compression{
		"":     CompressionNone,
		"NONE": CompressionNone,
		"GZIP": CompressionGzip,
		"gz":   CompressionGzip,
		"ZLIB": CompressionZlib,
		"zstd": CompressionZstd,
		" zst": CompressionZstd,
		"LZ4":  CompressionLZ4,
	}
	for in, want := range cases {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCompression("brotli")
	assert.Error(t, err)
}

func TestCompression_Text(t *testing.T) {
	for _, c := range allCompressions {
		text, err := c.MarshalText()
		require.NoError(t, err)

		var back Compression
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, c, back)
	}

	var c Compression
	assert.Error(t, c.UnmarshalText([]byte("rar")))
	assert.Equal(t, "compression(99)", Compression(99).String())
}

func TestCompressionFromPath(t *testing.T) {
	cases := map[string]Compression{
		"data.recordfile":      CompressionNone,
		"data.tfrecord":        CompressionNone,
		"data.recordfile.gz":   CompressionGzip,
		"data.recordfile.GZIP": CompressionGzip,
		"data.zz":              CompressionZlib,
		"data.zlib":            CompressionZlib,
		"data.zst":             CompressionZstd,
		"data.zstd":            CompressionZstd,
		"data.lz4":             CompressionLZ4,
	}
	for path, want := range cases {
		assert.Equal(t, want, CompressionFromPath(path), path)
	}
}

func TestCompression_SuffixRoundTrip(t *testing.T) {
	for _, c := range allCompressions {
		assert.Equal(t, c, CompressionFromPath("shard"+Extension+c.Suffix()), c.String())
	}
}

func TestCompression_ExplicitOverridesSuffix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.recordfile.gz")

	w, err := Create(path, WithCompression(CompressionNone))
	require.NoError(t, err)
	require.NoError(t, w.Write([]byte("raw")))
	require.NoError(t, w.Close())

	r, err := OpenFile(path, WithCompression(CompressionNone))
	require.NoError(t, err)
	defer r.Close()
	p, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "raw", string(p))
}
