package index

import (
	"encoding/binary"
	"fmt"
)

// Key layout. Ordinals and fingerprints are big-endian so pebble iterates
// them in numeric order.
//
//	m                       -> Meta (JSON)
//	o<ordinal:8>            -> offset:8 size:8
//	k<fingerprint:8><ord:8> -> empty
const (
	metaPrefix    byte = 'm'
	ordinalPrefix byte = 'o'
	lookupPrefix  byte = 'k'
)

var metaKey = []byte{metaPrefix}

func ordinalKey(ordinal uint64) []byte {
	key := make([]byte, 9)
	key[0] = ordinalPrefix
	binary.BigEndian.PutUint64(key[1:], ordinal)
	return key
}

func lookupKey(fingerprint, ordinal uint64) []byte {
	key := make([]byte, 17)
	key[0] = lookupPrefix
	binary.BigEndian.PutUint64(key[1:], fingerprint)
	binary.BigEndian.PutUint64(key[9:], ordinal)
	return key
}

// lookupBounds returns the iterator bounds covering every ordinal stored
// under fingerprint.
func lookupBounds(fingerprint uint64) (lower, upper []byte) {
	lower = make([]byte, 9)
	lower[0] = lookupPrefix
	binary.BigEndian.PutUint64(lower[1:], fingerprint)

	upper = append(append([]byte{}, lower...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	return lower, upper
}

func encodeLocation(offset, size int64) []byte {
	value := make([]byte, 16)
	binary.BigEndian.PutUint64(value[:8], uint64(offset))
	binary.BigEndian.PutUint64(value[8:], uint64(size))
	return value
}

func decodeLocation(value []byte) (offset, size int64, err error) {
	if len(value) != 16 {
		return 0, 0, fmt.Errorf("%w: location value has %d bytes", ErrCorruptIndex, len(value))
	}
	return int64(binary.BigEndian.Uint64(value[:8])), int64(binary.BigEndian.Uint64(value[8:])), nil
}

func decodeLookupOrdinal(key []byte) (uint64, error) {
	if len(key) != 17 || key[0] != lookupPrefix {
		return 0, fmt.Errorf("%w: malformed lookup key %x", ErrCorruptIndex, key)
	}
	return binary.BigEndian.Uint64(key[9:]), nil
}

func decodeOrdinal(key []byte) (uint64, error) {
	if len(key) != 9 || key[0] != ordinalPrefix {
		return 0, fmt.Errorf("%w: malformed ordinal key %x", ErrCorruptIndex, key)
	}
	return binary.BigEndian.Uint64(key[1:]), nil
}
