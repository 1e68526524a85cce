package feature

import (
	"encoding/json"
	"fmt"
)

// jsonFeature is the JSON view of a Feature. Bytes are base64 encoded.
type jsonFeature struct {
	BytesList *[][]byte  `json:"bytes_list,omitempty"`
	FloatList *[]float32 `json:"float_list,omitempty"`
	Int64List *[]int64   `json:"int64_list,omitempty"`
}

// MarshalJSON encodes f as {"int64_list": [...]}, {"float_list": [...]},
// {"bytes_list": [...]} or {} when unset.
func (f Feature) MarshalJSON() ([]byte, error) {
	var jf jsonFeature
	switch f.kind {
	case KindBytes:
		v := f.bytes
		if v == nil {
			v = [][]byte{}
		}
		jf.BytesList = &v
	case KindFloat:
		v := f.floats
		if v == nil {
			v = []float32{}
		}
		jf.FloatList = &v
	case KindInt64:
		v := f.ints
		if v == nil {
			v = []int64{}
		}
		jf.Int64List = &v
	}
	return json.Marshal(jf)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var jf jsonFeature
	if err := json.Unmarshal(data, &jf); err != nil {
		return err
	}

	set := 0
	for _, p := range []bool{jf.BytesList != nil, jf.FloatList != nil, jf.Int64List != nil} {
		if p {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("feature sets %d lists, at most one allowed", set)
	}

	switch {
	case jf.BytesList != nil:
		*f = NewBytesList(*jf.BytesList...)
	case jf.FloatList != nil:
		*f = NewFloatList(*jf.FloatList...)
	case jf.Int64List != nil:
		*f = NewInt64List(*jf.Int64List...)
	default:
		*f = Feature{}
	}
	return nil
}
