package query

import (
	"bytes"
	"cmp"
	"fmt"
	"iter"
	"strconv"

	"github.com/ssargent/recordfile/pkg/feature"
)

// Match reports whether any value of the queried feature satisfies the
// condition. Missing and valueless features never match. The query value
// is parsed as an integer, a float or raw bytes to follow the feature kind;
// a value that does not parse is an error.
func (q FieldQuery) Match(m feature.Map) (bool, error) {
	f, ok := m[q.Field]
	if !ok {
		return false, nil
	}

	switch f.Kind() {
	case feature.KindInt64:
		want, err := strconv.ParseInt(q.Value, 10, 64)
		if err != nil {
			return false, fmt.Errorf("%s: %q is not an integer", q.Field, q.Value)
		}
		for _, v := range f.Int64s() {
			if q.holds(cmp.Compare(v, want)) {
				return true, nil
			}
		}
	case feature.KindFloat:
		want, err := strconv.ParseFloat(q.Value, 32)
		if err != nil {
			return false, fmt.Errorf("%s: %q is not a number", q.Field, q.Value)
		}
		for _, v := range f.Floats() {
			if q.holds(cmp.Compare(v, float32(want))) {
				return true, nil
			}
		}
	case feature.KindBytes:
		want := []byte(q.Value)
		for _, v := range f.Bytes() {
			if q.holds(bytes.Compare(v, want)) {
				return true, nil
			}
		}
	}
	return false, nil
}

// holds applies the operator to a three-way comparison result.
func (q FieldQuery) holds(c int) bool {
	switch q.Operator {
	case "=":
		return c == 0
	case "!=":
		return c != 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	}
	return false
}

// Match reports whether m satisfies every field query. An empty Query
// matches everything.
func (q Query) Match(m feature.Map) (bool, error) {
	for _, fq := range q {
		ok, err := fq.Match(m)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Filter yields the maps of records that match q. Errors from records are
// passed through unchanged; a query error is yielded once and ends the
// sequence.
func (q Query) Filter(records iter.Seq2[feature.Map, error]) iter.Seq2[feature.Map, error] {
	return func(yield func(feature.Map, error) bool) {
		for m, err := range records {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			ok, err := q.Match(m)
			if err != nil {
				yield(nil, err)
				return
			}
			if ok && !yield(m, nil) {
				return
			}
		}
	}
}
