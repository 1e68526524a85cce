package feature

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Kind identifies which list a Feature holds.
type Kind uint8

const (
	// KindNone is a feature with no value set.
	KindNone Kind = iota
	KindBytes
	KindFloat
	KindInt64
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBytes:
		return "bytes_list"
	case KindFloat:
		return "float_list"
	case KindInt64:
		return "int64_list"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Feature is a typed list value. At most one of the lists is set; the zero
// Feature holds no value. Features are immutable once constructed.
type Feature struct {
	kind   Kind
	ints   []int64
	floats []float32
	bytes  [][]byte
}

// NewInt64List returns an int64 feature holding a copy of values.
func NewInt64List(values ...int64) Feature {
	f := Feature{kind: KindInt64}
	if len(values) > 0 {
		f.ints = append([]int64(nil), values...)
	}
	return f
}

// NewFloatList returns a float feature holding a copy of values.
func NewFloatList(values ...float32) Feature {
	f := Feature{kind: KindFloat}
	if len(values) > 0 {
		f.floats = append([]float32(nil), values...)
	}
	return f
}

// NewBytesList returns a bytes feature holding deep copies of values.
func NewBytesList(values ...[]byte) Feature {
	f := Feature{kind: KindBytes}
	if len(values) > 0 {
		f.bytes = make([][]byte, len(values))
		for i, v := range values {
			f.bytes[i] = cloneBytes(v)
		}
	}
	return f
}

// Kind reports which list is set.
func (f Feature) Kind() Kind {
	return f.kind
}

// IsSet reports whether the feature holds a value, possibly an empty list.
func (f Feature) IsSet() bool {
	return f.kind != KindNone
}

// Int64s returns the int64 list, or nil for other kinds. Callers must not
// modify the returned slice.
func (f Feature) Int64s() []int64 {
	return f.ints
}

// Floats returns the float list, or nil for other kinds. Callers must not
// modify the returned slice.
func (f Feature) Floats() []float32 {
	return f.floats
}

// Bytes returns the bytes list, or nil for other kinds. Callers must not
// modify the returned slices.
func (f Feature) Bytes() [][]byte {
	return f.bytes
}

// Len returns the number of elements in the list.
func (f Feature) Len() int {
	switch f.kind {
	case KindInt64:
		return len(f.ints)
	case KindFloat:
		return len(f.floats)
	case KindBytes:
		return len(f.bytes)
	default:
		return 0
	}
}

// Equal reports whether f and other hold the same kind and elements. Floats
// are compared by bit pattern so NaN values compare equal to themselves.
func (f Feature) Equal(other Feature) bool {
	if f.kind != other.kind || f.Len() != other.Len() {
		return false
	}

	switch f.kind {
	case KindInt64:
		for i := range f.ints {
			if f.ints[i] != other.ints[i] {
				return false
			}
		}
	case KindFloat:
		for i := range f.floats {
			if math.Float32bits(f.floats[i]) != math.Float32bits(other.floats[i]) {
				return false
			}
		}
	case KindBytes:
		for i := range f.bytes {
			if !bytes.Equal(f.bytes[i], other.bytes[i]) {
				return false
			}
		}
	}

	return true
}

func (f Feature) String() string {
	switch f.kind {
	case KindInt64:
		return fmt.Sprintf("%s%v", f.kind, f.ints)
	case KindFloat:
		return fmt.Sprintf("%s%v", f.kind, f.floats)
	case KindBytes:
		parts := make([]string, len(f.bytes))
		for i, b := range f.bytes {
			parts[i] = fmt.Sprintf("%q", b)
		}
		return fmt.Sprintf("%s[%s]", f.kind, strings.Join(parts, " "))
	default:
		return f.kind.String()
	}
}

// Map is a string-keyed set of features, the payload model of a record.
type Map map[string]Feature

// Keys returns the keys of m in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether m and other have the same keys with equal features.
func (m Map) Equal(other Map) bool {
	if len(m) != len(other) {
		return false
	}
	for k, f := range m {
		o, ok := other[k]
		if !ok || !f.Equal(o) {
			return false
		}
	}
	return true
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
