package codec

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func TestCRC32C_KnownVectors(t *testing.T) {
	testCases := []struct {
		name   string
		data   []byte
		crc    uint32
		masked uint32
	}{
		{name: "empty", data: nil, crc: 0x00000000, masked: 0xa282ead8},
		{name: "check string", data: []byte("123456789"), crc: 0xe3069283, masked: 0xc78ab0e5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CRC32C(tc.data); got != tc.crc {
				t.Errorf("CRC32C = %#08x, want %#08x", got, tc.crc)
			}
			if got := MaskedCRC32C(tc.data); got != tc.masked {
				t.Errorf("MaskedCRC32C = %#08x, want %#08x", got, tc.masked)
			}
		})
	}
}

func TestMask_Inverse(t *testing.T) {
	for _, crc := range []uint32{0, 1, 0x7fff, 0x8000, 0xa282ead8, 0xdeadbeef, 0xffffffff} {
		if got := Unmask(Mask(crc)); got != crc {
			t.Errorf("Unmask(Mask(%#08x)) = %#08x", crc, got)
		}
	}

	// A zero checksum must not be stored as zero.
	if Mask(0) == 0 {
		t.Error("Mask(0) returned 0")
	}
}

func TestNewCRC32C_Streaming(t *testing.T) {
	h := NewCRC32C()
	h.Write([]byte("1234"))
	h.Write([]byte("56789"))
	if got := h.Sum32(); got != 0xe3069283 {
		t.Errorf("streaming CRC32C = %#08x, want 0xe3069283", got)
	}
}

func TestEncodeFrame_Golden(t *testing.T) {
	payload, _ := hex.DecodeString("0a160a140a0b696e745f6665617475726512051a030a012a")
	want := "1800000000000000" + "a37f4b22" + hex.EncodeToString(payload) + "e66fc4f5"

	got := hex.EncodeToString(EncodeFrame(payload))
	if got != want {
		t.Errorf("EncodeFrame mismatch\n got: %s\nwant: %s", got, want)
	}

	empty := hex.EncodeToString(EncodeFrame(nil))
	if empty != "000000000000000029039807d8ea82a2" {
		t.Errorf("empty frame = %s", empty)
	}
}

func TestFrame_EncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		payload []byte
	}{
		{name: "empty", payload: []byte{}},
		{name: "single byte", payload: []byte{0x00}},
		{name: "text", payload: []byte("hello, records")},
		{name: "binary", payload: []byte{0xFF, 0xFE, 0xFD, 0xFC, 0x00}},
		{name: "large", payload: bytes.Repeat([]byte("v"), 64*1024)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := EncodeFrame(tc.payload)
			if len(encoded) != FrameSize(len(tc.payload)) {
				t.Fatalf("encoded size = %d, want %d", len(encoded), FrameSize(len(tc.payload)))
			}

			payload, n, err := DecodeFrame(encoded)
			if err != nil {
				t.Fatalf("DecodeFrame failed: %v", err)
			}
			if n != len(encoded) {
				t.Errorf("consumed %d bytes, want %d", n, len(encoded))
			}
			if !bytes.Equal(payload, tc.payload) {
				t.Errorf("payload mismatch: got %q, want %q", payload, tc.payload)
			}
		})
	}
}

func TestAppendFrame_Sequence(t *testing.T) {
	var buf []byte
	payloads := [][]byte{[]byte("p1"), []byte(""), []byte("p3-longer")}
	for _, p := range payloads {
		buf = AppendFrame(buf, p)
	}

	for i, want := range payloads {
		got, n, err := DecodeFrame(buf)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d = %q, want %q", i, got, want)
		}
		buf = buf[n:]
	}
	if len(buf) != 0 {
		t.Errorf("%d trailing bytes", len(buf))
	}
}

func TestDecodeFrame_BitFlips(t *testing.T) {
	payload := []byte("integrity matters")
	frame := EncodeFrame(payload)

	for bit := 0; bit < len(frame)*8; bit++ {
		corrupted := append([]byte(nil), frame...)
		corrupted[bit/8] ^= 1 << (bit % 8)

		pos := bit / 8
		_, _, err := DecodeFrame(corrupted)
		switch {
		case pos < HeaderSize:
			// Length or length checksum.
			if !errors.Is(err, ErrCorruptLength) {
				t.Fatalf("bit %d (byte %d): got %v, want ErrCorruptLength", bit, pos, err)
			}
		default:
			if !errors.Is(err, ErrCorruptPayload) {
				t.Fatalf("bit %d (byte %d): got %v, want ErrCorruptPayload", bit, pos, err)
			}
		}
	}
}

func TestDecodeFrame_Truncated(t *testing.T) {
	frame := EncodeFrame([]byte("truncate me"))

	for cut := 0; cut < len(frame); cut++ {
		_, _, err := DecodeFrame(frame[:cut])
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("cut at %d: got %v, want ErrTruncated", cut, err)
		}
	}
}

func TestDecodeHeader(t *testing.T) {
	var buf [HeaderSize]byte
	NewHeader(1234).Encode(buf[:])

	h, err := DecodeHeader(buf[:])
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if h.Length != 1234 {
		t.Errorf("Length = %d, want 1234", h.Length)
	}

	buf[LengthSize] ^= 0x01
	if _, err := DecodeHeader(buf[:]); !errors.Is(err, ErrCorruptLength) {
		t.Errorf("got %v, want ErrCorruptLength", err)
	}
}

func TestVerifyPayload(t *testing.T) {
	frame := EncodeFrame([]byte("abc"))
	footer := frame[HeaderSize+3:]

	if err := VerifyPayload([]byte("abc"), footer); err != nil {
		t.Errorf("VerifyPayload failed: %v", err)
	}
	if err := VerifyPayload([]byte("abd"), footer); !errors.Is(err, ErrCorruptPayload) {
		t.Errorf("got %v, want ErrCorruptPayload", err)
	}
	if err := VerifyPayload([]byte("abc"), footer[:2]); !errors.Is(err, ErrTruncated) {
		t.Errorf("got %v, want ErrTruncated", err)
	}
}
