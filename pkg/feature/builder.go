package feature

// Builder assembles a Map one feature at a time. Setting a name twice
// replaces the earlier feature.
type Builder struct {
	features Map
}

// NewBuilder returns a builder with no features.
func NewBuilder() *Builder {
	return &Builder{features: Map{}}
}

// SetInt64 sets an int64 feature with a single value.
func (b *Builder) SetInt64(name string, value int64) *Builder {
	return b.Set(name, NewInt64List(value))
}

// SetInt64s sets an int64 feature with multiple values.
func (b *Builder) SetInt64s(name string, values []int64) *Builder {
	return b.Set(name, NewInt64List(values...))
}

// SetFloat sets a float feature with a single value.
func (b *Builder) SetFloat(name string, value float32) *Builder {
	return b.Set(name, NewFloatList(value))
}

// SetFloats sets a float feature with multiple values.
func (b *Builder) SetFloats(name string, values []float32) *Builder {
	return b.Set(name, NewFloatList(values...))
}

// SetBytes sets a bytes feature with a single value.
func (b *Builder) SetBytes(name string, value []byte) *Builder {
	return b.Set(name, NewBytesList(value))
}

// SetBytesList sets a bytes feature with multiple values.
func (b *Builder) SetBytesList(name string, values [][]byte) *Builder {
	return b.Set(name, NewBytesList(values...))
}

// SetNone sets a feature that carries no value.
func (b *Builder) SetNone(name string) *Builder {
	return b.Set(name, Feature{})
}

// Set stores f under name.
func (b *Builder) Set(name string, f Feature) *Builder {
	if b.features == nil {
		b.features = Map{}
	}
	b.features[name] = f
	return b
}

// Len returns the number of features set so far.
func (b *Builder) Len() int {
	return len(b.features)
}

// Release returns the built map and resets the builder.
func (b *Builder) Release() Map {
	m := b.features
	if m == nil {
		m = Map{}
	}
	b.features = Map{}
	return m
}
