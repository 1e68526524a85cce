// Package codec implements the frame format used by record files.
//
// A record file is a plain concatenation of frames. There is no file header,
// no index, and no padding between frames, so files can be appended to and
// concatenated freely. The layout is bit-compatible with TFRecord.
//
// # Frame Format
//
//	[Length(8)][LengthCRC(4)][Payload(Length)][PayloadCRC(4)]
//
// Fields:
//   - Length: 64-bit unsigned payload length (little-endian)
//   - LengthCRC: masked CRC32-C of the 8 length bytes (little-endian)
//   - Payload: opaque bytes, typically an encoded feature map
//   - PayloadCRC: masked CRC32-C of the payload bytes (little-endian)
//
// A frame adds 16 bytes of overhead to its payload.
//
// # Masked CRC32-C
//
// Checksums use the Castagnoli polynomial. The raw value is never stored;
// it is rotated right by 15 bits and offset by 0xa282ead8:
//
//	masked = ((crc >> 15) | (crc << 17)) + 0xa282ead8
//
// Readers in other ecosystems depend on these exact constants.
//
// # Errors
//
// Decoding reports one of the sentinel errors, wrapped with detail:
//   - ErrCorruptLength: the length checksum does not match
//   - ErrCorruptPayload: the payload checksum does not match
//   - ErrTruncated: fewer bytes remain than the frame requires
//   - ErrRecordTooLarge: a reader-imposed size limit was exceeded
//
// Use errors.Is to test for them.
//
// # Usage
//
//	frame := codec.EncodeFrame(payload)
//
//	payload, n, err := codec.DecodeFrame(frame)
//	if err != nil {
//	    return err
//	}
//	frame = frame[n:]
//
// Streaming readers and writers live in package recordio; this package only
// deals with byte slices.
package codec
