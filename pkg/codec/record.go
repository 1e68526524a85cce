package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// LengthSize is the size of the little-endian payload length field.
	LengthSize = 8
	// ChecksumSize is the size of each masked CRC32-C field.
	ChecksumSize = 4
	// HeaderSize covers the length and the length checksum.
	HeaderSize = LengthSize + ChecksumSize
	// FooterSize covers the payload checksum.
	FooterSize = ChecksumSize
	// Overhead is the number of bytes a frame adds around its payload.
	Overhead = HeaderSize + FooterSize
)

var (
	ErrCorruptLength  = errors.New("record length checksum mismatch")
	ErrCorruptPayload = errors.New("record payload checksum mismatch")
	ErrTruncated      = errors.New("record stream truncated")
	ErrRecordTooLarge = errors.New("record too large")
)

// Header is the fixed-size prefix of a frame.
type Header struct {
	Length      uint64 // Payload length in bytes
	LengthCRC32 uint32 // Masked CRC32-C of the 8 length bytes
}

// NewHeader builds the header for a payload of n bytes.
func NewHeader(n int) Header {
	var buf [LengthSize]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	return Header{
		Length:      uint64(n),
		LengthCRC32: MaskedCRC32C(buf[:]),
	}
}

// Encode writes the header into dst, which must hold HeaderSize bytes.
func (h Header) Encode(dst []byte) {
	_ = dst[HeaderSize-1]
	binary.LittleEndian.PutUint64(dst[0:], h.Length)
	binary.LittleEndian.PutUint32(dst[LengthSize:], h.LengthCRC32)
}

// DecodeHeader parses and validates a frame header.
func DecodeHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncated, HeaderSize, len(src))
	}

	h := Header{
		Length:      binary.LittleEndian.Uint64(src[0:LengthSize]),
		LengthCRC32: binary.LittleEndian.Uint32(src[LengthSize:HeaderSize]),
	}
	if got := MaskedCRC32C(src[0:LengthSize]); got != h.LengthCRC32 {
		return Header{}, fmt.Errorf("%w: stored %#08x, computed %#08x", ErrCorruptLength, h.LengthCRC32, got)
	}

	return h, nil
}

// FrameSize returns the encoded size of a frame carrying n payload bytes.
func FrameSize(n int) int {
	return Overhead + n
}

// AppendFrame appends the framed payload to dst and returns the extended slice.
// Format: [Length(8)][MaskedCRC(Length)(4)][Payload][MaskedCRC(Payload)(4)]
func AppendFrame(dst, payload []byte) []byte {
	var hdr [HeaderSize]byte
	NewHeader(len(payload)).Encode(hdr[:])
	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	return binary.LittleEndian.AppendUint32(dst, MaskedCRC32C(payload))
}

// EncodeFrame returns payload wrapped in a single frame.
func EncodeFrame(payload []byte) []byte {
	return AppendFrame(make([]byte, 0, FrameSize(len(payload))), payload)
}

// VerifyPayload checks payload against the stored footer bytes.
func VerifyPayload(payload, footer []byte) error {
	if len(footer) < FooterSize {
		return fmt.Errorf("%w: footer needs %d bytes, have %d", ErrTruncated, FooterSize, len(footer))
	}

	stored := binary.LittleEndian.Uint32(footer)
	if got := MaskedCRC32C(payload); got != stored {
		return fmt.Errorf("%w: stored %#08x, computed %#08x", ErrCorruptPayload, stored, got)
	}

	return nil
}

// DecodeFrame parses one complete frame at the start of src. It returns the
// payload, which aliases src, and the number of bytes consumed.
func DecodeFrame(src []byte) ([]byte, int, error) {
	h, err := DecodeHeader(src)
	if err != nil {
		return nil, 0, err
	}

	avail := uint64(len(src) - HeaderSize)
	if h.Length > avail || avail-h.Length < FooterSize {
		return nil, 0, fmt.Errorf("%w: frame declares %d payload bytes, have %d", ErrTruncated, h.Length, avail)
	}

	end := HeaderSize + int(h.Length)
	payload := src[HeaderSize:end]
	if err := VerifyPayload(payload, src[end:end+FooterSize]); err != nil {
		return nil, 0, err
	}

	return payload, end + FooterSize, nil
}
