package feature

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformedPayload is returned when bytes do not parse as a feature map.
var ErrMalformedPayload = errors.New("malformed feature payload")

// Field numbers of the tf.train.Example schema.
const (
	exampleFeaturesField protowire.Number = 1 // Example.features
	featuresMapField     protowire.Number = 1 // Features.feature
	entryKeyField        protowire.Number = 1 // map entry key
	entryValueField      protowire.Number = 2 // map entry value
	bytesListField       protowire.Number = 1 // Feature.bytes_list
	floatListField       protowire.Number = 2 // Feature.float_list
	int64ListField       protowire.Number = 3 // Feature.int64_list
	listValueField       protowire.Number = 1 // {Bytes,Float,Int64}List.value
)

// Encode serializes m as a tf.train.Example message. Keys are written in
// sorted order, so equal maps always produce identical bytes.
func Encode(m Map) ([]byte, error) {
	return AppendEncode(nil, m)
}

// AppendEncode appends the encoding of m to dst.
func AppendEncode(dst []byte, m Map) ([]byte, error) {
	keys := m.Keys()

	featuresLen := 0
	for _, k := range keys {
		if !utf8.ValidString(k) {
			return dst, fmt.Errorf("feature key %q is not valid UTF-8", k)
		}
		featuresLen += protowire.SizeTag(featuresMapField) + protowire.SizeBytes(entrySize(k, m[k]))
	}

	dst = protowire.AppendTag(dst, exampleFeaturesField, protowire.BytesType)
	dst = protowire.AppendVarint(dst, uint64(featuresLen))
	for _, k := range keys {
		f := m[k]
		dst = protowire.AppendTag(dst, featuresMapField, protowire.BytesType)
		dst = protowire.AppendVarint(dst, uint64(entrySize(k, f)))
		dst = protowire.AppendTag(dst, entryKeyField, protowire.BytesType)
		dst = protowire.AppendString(dst, k)
		dst = protowire.AppendTag(dst, entryValueField, protowire.BytesType)
		dst = protowire.AppendVarint(dst, uint64(featureSize(f)))
		dst = appendFeature(dst, f)
	}

	return dst, nil
}

func entrySize(key string, f Feature) int {
	return protowire.SizeTag(entryKeyField) + protowire.SizeBytes(len(key)) +
		protowire.SizeTag(entryValueField) + protowire.SizeBytes(featureSize(f))
}

func featureSize(f Feature) int {
	if f.kind == KindNone {
		return 0
	}
	return protowire.SizeTag(kindField(f.kind)) + protowire.SizeBytes(listSize(f))
}

// listSize returns the size of the inner list message.
func listSize(f Feature) int {
	switch f.kind {
	case KindInt64:
		if len(f.ints) == 0 {
			return 0
		}
		return protowire.SizeTag(listValueField) + protowire.SizeBytes(packedInt64Size(f.ints))
	case KindFloat:
		if len(f.floats) == 0 {
			return 0
		}
		return protowire.SizeTag(listValueField) + protowire.SizeBytes(4*len(f.floats))
	case KindBytes:
		n := 0
		for _, b := range f.bytes {
			n += protowire.SizeTag(listValueField) + protowire.SizeBytes(len(b))
		}
		return n
	default:
		return 0
	}
}

func packedInt64Size(values []int64) int {
	n := 0
	for _, v := range values {
		n += protowire.SizeVarint(uint64(v))
	}
	return n
}

func appendFeature(dst []byte, f Feature) []byte {
	if f.kind == KindNone {
		return dst
	}

	dst = protowire.AppendTag(dst, kindField(f.kind), protowire.BytesType)
	dst = protowire.AppendVarint(dst, uint64(listSize(f)))

	switch f.kind {
	case KindInt64:
		if len(f.ints) > 0 {
			dst = protowire.AppendTag(dst, listValueField, protowire.BytesType)
			dst = protowire.AppendVarint(dst, uint64(packedInt64Size(f.ints)))
			for _, v := range f.ints {
				dst = protowire.AppendVarint(dst, uint64(v))
			}
		}
	case KindFloat:
		if len(f.floats) > 0 {
			dst = protowire.AppendTag(dst, listValueField, protowire.BytesType)
			dst = protowire.AppendVarint(dst, uint64(4*len(f.floats)))
			for _, v := range f.floats {
				dst = protowire.AppendFixed32(dst, math.Float32bits(v))
			}
		}
	case KindBytes:
		for _, b := range f.bytes {
			dst = protowire.AppendTag(dst, listValueField, protowire.BytesType)
			dst = protowire.AppendBytes(dst, b)
		}
	}

	return dst
}

func kindField(k Kind) protowire.Number {
	switch k {
	case KindBytes:
		return bytesListField
	case KindFloat:
		return floatListField
	case KindInt64:
		return int64ListField
	default:
		return 0
	}
}

// Decode parses a tf.train.Example message into a Map. Unknown fields
// outside Feature are skipped; anything structurally invalid yields an
// error wrapping ErrMalformedPayload.
func Decode(b []byte) (Map, error) {
	m := Map{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		if num != exampleFeaturesField {
			return nil
		}
		if typ != protowire.BytesType {
			return malformed("Example.features has wire type %d", typ)
		}
		return decodeFeatures(body, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func decodeFeatures(b []byte, m Map) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		if num != featuresMapField {
			return nil
		}
		if typ != protowire.BytesType {
			return malformed("Features.feature has wire type %d", typ)
		}
		return decodeEntry(body, m)
	})
}

func decodeEntry(b []byte, m Map) error {
	var key string
	var f Feature

	err := walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		switch num {
		case entryKeyField:
			if typ != protowire.BytesType {
				return malformed("feature key has wire type %d", typ)
			}
			if !utf8.Valid(body) {
				return malformed("feature key is not valid UTF-8")
			}
			key = string(body)
		case entryValueField:
			if typ != protowire.BytesType {
				return malformed("feature value has wire type %d", typ)
			}
			// Repeated value fields merge, as protobuf messages do.
			return decodeFeature(body, &f)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m[key] = f
	return nil
}

func decodeFeature(b []byte, f *Feature) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		var kind Kind
		switch num {
		case bytesListField:
			kind = KindBytes
		case floatListField:
			kind = KindFloat
		case int64ListField:
			kind = KindInt64
		default:
			return malformed("unknown feature kind tag %d", num)
		}
		if typ != protowire.BytesType {
			return malformed("%s has wire type %d", kind, typ)
		}
		if f.kind != KindNone && f.kind != kind {
			return malformed("feature holds both %s and %s", f.kind, kind)
		}
		f.kind = kind

		switch kind {
		case KindBytes:
			return decodeBytesList(body, f)
		case KindFloat:
			return decodeFloatList(body, f)
		default:
			return decodeInt64List(body, f)
		}
	})
}

func decodeBytesList(b []byte, f *Feature) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		if num != listValueField {
			return nil
		}
		if typ != protowire.BytesType {
			return malformed("bytes_list value has wire type %d", typ)
		}
		f.bytes = append(f.bytes, cloneBytes(body))
		return nil
	})
}

func decodeFloatList(b []byte, f *Feature) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		if num != listValueField {
			return nil
		}
		switch typ {
		case protowire.BytesType:
			if len(body)%4 != 0 {
				return malformed("packed float_list has %d bytes", len(body))
			}
			for len(body) > 0 {
				v, n := protowire.ConsumeFixed32(body)
				if n < 0 {
					return malformed("float_list: %v", protowire.ParseError(n))
				}
				f.floats = append(f.floats, math.Float32frombits(v))
				body = body[n:]
			}
		case protowire.Fixed32Type:
			v, _ := protowire.ConsumeFixed32(body)
			f.floats = append(f.floats, math.Float32frombits(v))
		default:
			return malformed("float_list value has wire type %d", typ)
		}
		return nil
	})
}

func decodeInt64List(b []byte, f *Feature) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, body []byte) error {
		if num != listValueField {
			return nil
		}
		switch typ {
		case protowire.BytesType:
			for len(body) > 0 {
				v, n := protowire.ConsumeVarint(body)
				if n < 0 {
					return malformed("int64_list: %v", protowire.ParseError(n))
				}
				f.ints = append(f.ints, int64(v))
				body = body[n:]
			}
		case protowire.VarintType:
			v, _ := protowire.ConsumeVarint(body)
			f.ints = append(f.ints, int64(v))
		default:
			return malformed("int64_list value has wire type %d", typ)
		}
		return nil
	})
}

// walkFields calls fn for every field in b. For length-delimited fields body
// is the field content; for scalar fields it is the raw value bytes.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, body []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed("tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		var body []byte
		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return malformed("field %d: %v", num, protowire.ParseError(n))
			}
			body, b = v, b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return malformed("field %d: %v", num, protowire.ParseError(n))
			}
			body, b = b[:n], b[n:]
		}

		if err := fn(num, typ, body); err != nil {
			return err
		}
	}
	return nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}
