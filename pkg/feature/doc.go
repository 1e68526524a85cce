// Package feature defines the feature map carried in record payloads and
// its binary encoding.
//
// A Map associates string keys with a Feature. A Feature is one of three
// typed lists (int64, float32, or byte strings) or holds no value at all.
// Empty lists are valid and distinct from an unset feature.
//
//	m := feature.NewBuilder().
//	    SetInt64("int_feature", 42).
//	    SetFloats("scores", []float32{0.5, 0.25}).
//	    SetBytes("id", []byte("rec-1")).
//	    Release()
//
//	data, err := feature.Encode(m)
//	...
//	decoded, err := feature.Decode(data)
//
// # Encoding
//
// Encode writes a tf.train.Example protocol buffer:
//
//	message Example   { Features features = 1; }
//	message Features  { map<string, Feature> feature = 1; }
//	message Feature   { oneof kind { BytesList bytes_list = 1; FloatList float_list = 2; Int64List int64_list = 3; } }
//	message BytesList { repeated bytes value = 1; }
//	message FloatList { repeated float value = 1 [packed = true]; }
//	message Int64List { repeated int64 value = 1 [packed = true]; }
//
// Keys are sorted before encoding, so the output depends only on the
// contents of the map. Decode accepts packed and unpacked repeated values
// and skips unknown fields outside Feature. An unknown tag inside a Feature
// or a Feature carrying two different lists is rejected with
// ErrMalformedPayload.
package feature
