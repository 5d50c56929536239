// Package jcode implements serialization and deserialization of jaql values.
//
// Each value starts with a one-byte tag.  Null, false and true are the tag
// alone.  Ints follow the tag with a zig-zag varint and floats with eight
// little-endian bytes, every NaN written with the same bits.  Strings and
// bytes follow the tag with a uvarint length and the payload.  Arrays follow
// the tag with a uvarint element count and the encoded elements; records with
// a uvarint field count and, for each field, a uvarint-prefixed name and the
// encoded value.
package jcode

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/taksan/jaql"
)

const (
	tagNull byte = iota
	tagFalse
	tagTrue
	tagInt
	tagFloat
	tagString
	tagBytes
	tagArray
	tagRecord
)

// MaxLength bounds the length of any string, bytes, array or record read
// from a stream so corrupt input cannot trigger a huge allocation.
const MaxLength = 1 << 30

var canonicalNaN = math.NaN()

var (
	ErrBadTag    = errors.New("jcode: bad value tag")
	ErrBadLength = errors.New("jcode: length exceeds limit")
)

// AppendUvarint is like encoding/binary.PutUvarint but appends to dst instead
// of writing into it.
func AppendUvarint(dst []byte, u64 uint64) []byte {
	for u64 >= 0x80 {
		dst = append(dst, byte(u64)|0x80)
		u64 >>= 7
	}
	return append(dst, byte(u64))
}

// SizeOfUvarint returns the number of bytes required by AppendUvarint to
// represent u64.
func SizeOfUvarint(u64 uint64) int {
	n := 1
	for u64 >= 0x80 {
		n++
		u64 >>= 7
	}
	return n
}

// Append appends the encoding of val to dst and returns the extended buffer.
func Append(dst []byte, val *jaql.Value) []byte {
	switch val.Kind() {
	case jaql.KindNull:
		return append(dst, tagNull)
	case jaql.KindBool:
		if val.Bool() {
			return append(dst, tagTrue)
		}
		return append(dst, tagFalse)
	case jaql.KindInt:
		dst = append(dst, tagInt)
		return binary.AppendVarint(dst, val.Int())
	case jaql.KindFloat:
		dst = append(dst, tagFloat)
		f := val.Float()
		if math.IsNaN(f) {
			f = canonicalNaN
		}
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(f))
	case jaql.KindString:
		dst = append(dst, tagString)
		return appendCounted(dst, val.Bytes())
	case jaql.KindBytes:
		dst = append(dst, tagBytes)
		return appendCounted(dst, val.Bytes())
	case jaql.KindArray:
		elems := val.Elements()
		dst = append(dst, tagArray)
		dst = AppendUvarint(dst, uint64(len(elems)))
		for k := range elems {
			dst = Append(dst, &elems[k])
		}
		return dst
	case jaql.KindRecord:
		fields := val.Fields()
		dst = append(dst, tagRecord)
		dst = AppendUvarint(dst, uint64(len(fields)))
		for k := range fields {
			dst = appendCounted(dst, []byte(fields[k].Name))
			dst = Append(dst, &fields[k].Value)
		}
		return dst
	}
	panic("jcode.Append: unknown kind " + val.Kind().String())
}

func appendCounted(dst, b []byte) []byte {
	dst = AppendUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}
