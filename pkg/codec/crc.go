package codec

import (
	"hash"
	"hash/crc32"
)

// maskDelta is added to the rotated checksum before it is stored.
const maskDelta = 0xa282ead8

// crc32cTable is pre-computed for the CRC32-Castagnoli polynomial.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the raw CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a streaming CRC32-Castagnoli hash.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}

// Mask rotates crc right by 15 bits and adds a constant. Stored checksums
// are always masked.
func Mask(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Unmask inverts Mask.
func Unmask(masked uint32) uint32 {
	rot := masked - maskDelta
	return (rot >> 17) | (rot << 15)
}

// MaskedCRC32C returns the masked CRC32-C of data, the value written to disk.
func MaskedCRC32C(data []byte) uint32 {
	return Mask(CRC32C(data))
}
