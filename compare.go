package jaql

import (
	"bytes"
	"math"
	"strings"
)

// Compare returns an integer comparing two values in the total order used
// for grouping: values order first by kind (null < bool < int < float <
// string < bytes < array < record) and then by content.  Arrays and records
// compare element by element, with a shorter prefix ordering first.  NaN
// orders before every other float and equal to itself, and -0 orders just
// before +0, so values that compare equal have the same jcode encoding.
func Compare(a, b *Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindBool, KindInt:
		return compareInt(a.Int(), b.Int())
	case KindFloat:
		return compareFloat(a.Float(), b.Float())
	case KindString, KindBytes:
		return bytes.Compare(a.bytes, b.bytes)
	case KindArray:
		for k := 0; k < len(a.elems) && k < len(b.elems); k++ {
			if c := Compare(&a.elems[k], &b.elems[k]); c != 0 {
				return c
			}
		}
		return compareInt(int64(len(a.elems)), int64(len(b.elems)))
	case KindRecord:
		for k := 0; k < len(a.fields) && k < len(b.fields); k++ {
			af, bf := &a.fields[k], &b.fields[k]
			if c := strings.Compare(af.Name, bf.Name); c != 0 {
				return c
			}
			if c := Compare(&af.Value, &bf.Value); c != 0 {
				return c
			}
		}
		return compareInt(int64(len(a.fields)), int64(len(b.fields)))
	}
	panic("jaql.Compare: unknown kind " + a.kind.String())
}

func Equal(a, b *Value) bool {
	return Compare(a, b) == 0
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return -1
	case bNaN:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	case math.Signbit(a) != math.Signbit(b):
		// Zeros of opposite sign.
		if math.Signbit(a) {
			return -1
		}
		return 1
	}
	return 0
}
