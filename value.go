package jaql

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"unsafe"

	"github.com/goccy/go-json"
)

var (
	ErrNotArray  = errors.New("value is not an array")
	ErrNotRecord = errors.New("value is not a record")
	ErrIndex     = errors.New("array index out of bounds")
)

// Kind identifies the JSON item type held by a Value.  The numeric order of
// the kinds is the first level of the total order over values.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindRecord:
		return "record"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

type Field struct {
	Name  string
	Value Value
}

// Value is a JSON item.  The zero Value is null.  Scalars keep their payload
// in num (bool, int and float bits) or bytes (string and bytes); containers
// keep their elements inline so a Value used as a decode target can be
// reused without reallocating.
type Value struct {
	kind   Kind
	num    uint64
	bytes  []byte
	elems  []Value
	fields []Field
}

var (
	Null  = &Value{}
	False = &Value{kind: KindBool}
	True  = &Value{kind: KindBool, num: 1}
)

func NewBool(b bool) *Value {
	if b {
		return &Value{kind: KindBool, num: 1}
	}
	return &Value{kind: KindBool}
}

func NewInt(i int64) *Value {
	return &Value{kind: KindInt, num: uint64(i)}
}

func NewFloat(f float64) *Value {
	return &Value{kind: KindFloat, num: math.Float64bits(f)}
}

func NewString(s string) *Value {
	return &Value{kind: KindString, bytes: []byte(s)}
}

func NewBytes(b []byte) *Value {
	return &Value{kind: KindBytes, bytes: b}
}

func NewArray(elems []Value) *Value {
	return &Value{kind: KindArray, elems: elems}
}

func NewRecord(fields []Field) *Value {
	return &Value{kind: KindRecord, fields: fields}
}

func (v *Value) Kind() Kind {
	return v.kind
}

func (v *Value) IsNull() bool {
	return v.kind == KindNull
}

func (v *Value) Bool() bool {
	return v.num != 0
}

func (v *Value) Int() int64 {
	return int64(v.num)
}

func (v *Value) Float() float64 {
	return math.Float64frombits(v.num)
}

// AsFloat returns the numeric value of an int or float.  The second return
// is false for any other kind.
func (v *Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.Int()), true
	case KindFloat:
		return v.Float(), true
	}
	return 0, false
}

func (v *Value) Str() string {
	return string(v.bytes)
}

// Bytes returns the payload of a string or bytes value.  The returned slice
// aliases the value.
func (v *Value) Bytes() []byte {
	return v.bytes
}

// Elements returns the elements of an array.  The returned slice aliases
// the value.
func (v *Value) Elements() []Value {
	return v.elems
}

func (v *Value) Fields() []Field {
	return v.fields
}

// Len returns the number of elements of an array, fields of a record, or
// bytes of a string or bytes value, and zero otherwise.
func (v *Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.elems)
	case KindRecord:
		return len(v.fields)
	case KindString, KindBytes:
		return len(v.bytes)
	}
	return 0
}

func (v *Value) Index(i int) (*Value, error) {
	if v.kind != KindArray {
		return nil, ErrNotArray
	}
	if i < 0 || i >= len(v.elems) {
		return nil, ErrIndex
	}
	return &v.elems[i], nil
}

// Field returns the first field named name, or nil if there is none.
func (v *Value) Field(name string) (*Value, error) {
	if v.kind != KindRecord {
		return nil, ErrNotRecord
	}
	for k := range v.fields {
		if v.fields[k].Name == name {
			return &v.fields[k].Value, nil
		}
	}
	return nil, nil
}

// The methods below let a decoder fill a Value in place.  They keep the
// capacity of the existing buffers so a Value can serve as a reusable read
// target.

// Reset sets the kind and clears the payload while keeping buffer capacity.
func (v *Value) Reset(kind Kind) {
	v.kind = kind
	v.num = 0
	v.bytes = v.bytes[:0]
	v.elems = v.elems[:0]
	v.fields = v.fields[:0]
}

func (v *Value) SetBool(b bool) {
	v.Reset(KindBool)
	if b {
		v.num = 1
	}
}

func (v *Value) SetInt(i int64) {
	v.Reset(KindInt)
	v.num = uint64(i)
}

func (v *Value) SetFloat(f float64) {
	v.Reset(KindFloat)
	v.num = math.Float64bits(f)
}

// Buffer resets v to kind (a string or bytes kind) and returns its payload
// resized to n bytes for the caller to fill.
func (v *Value) Buffer(kind Kind, n int) []byte {
	v.Reset(kind)
	if cap(v.bytes) < n {
		v.bytes = make([]byte, n)
	}
	v.bytes = v.bytes[:n]
	return v.bytes
}

// GrowElements resets v to an array of n elements and returns them for the
// caller to fill.  Elements left over from a previous use keep their buffers.
func (v *Value) GrowElements(n int) []Value {
	elems := v.elems[:cap(v.elems)]
	v.Reset(KindArray)
	if len(elems) < n {
		elems = append(elems, make([]Value, n-len(elems))...)
	}
	v.elems = elems[:n]
	return v.elems
}

// GrowFields is like GrowElements for records.
func (v *Value) GrowFields(n int) []Field {
	fields := v.fields[:cap(v.fields)]
	v.Reset(KindRecord)
	if len(fields) < n {
		fields = append(fields, make([]Field, n-len(fields))...)
	}
	v.fields = fields[:n]
	return v.fields
}

// Copy returns a deep copy of v that shares no memory with it.
func (v *Value) Copy() *Value {
	out := &Value{}
	out.CopyFrom(v)
	return out
}

// CopyFrom deep-copies from into v, reusing v's buffers.
func (v *Value) CopyFrom(from *Value) {
	switch from.kind {
	case KindString, KindBytes:
		copy(v.Buffer(from.kind, len(from.bytes)), from.bytes)
	case KindArray:
		elems := v.GrowElements(len(from.elems))
		for k := range elems {
			elems[k].CopyFrom(&from.elems[k])
		}
	case KindRecord:
		fields := v.GrowFields(len(from.fields))
		for k := range fields {
			fields[k].Name = from.fields[k].Name
			fields[k].Value.CopyFrom(&from.fields[k].Value)
		}
	default:
		v.Reset(from.kind)
		v.num = from.num
	}
}

var sizeofValue = int(unsafe.Sizeof(Value{}))

// MemSize returns an estimate of the memory held by v.  It is used only for
// spill accounting so it favors speed over precision.
func (v *Value) MemSize() int {
	n := sizeofValue + len(v.bytes)
	for k := range v.elems {
		n += v.elems[k].MemSize()
	}
	for k := range v.fields {
		n += len(v.fields[k].Name) + v.fields[k].Value.MemSize()
	}
	return n
}

// MarshalJSON implements json.Marshaler.  Bytes values are rendered as
// base64 strings and non-finite floats as null.
func (v *Value) MarshalJSON() ([]byte, error) {
	return v.AppendJSON(nil)
}

func (v *Value) AppendJSON(b []byte) ([]byte, error) {
	switch v.kind {
	case KindNull:
		return append(b, "null"...), nil
	case KindBool:
		return strconv.AppendBool(b, v.Bool()), nil
	case KindInt:
		return strconv.AppendInt(b, v.Int(), 10), nil
	case KindFloat:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return append(b, "null"...), nil
		}
		return strconv.AppendFloat(b, f, 'g', -1, 64), nil
	case KindString:
		s, err := json.Marshal(v.Str())
		return append(b, s...), err
	case KindBytes:
		s, err := json.Marshal(v.bytes)
		return append(b, s...), err
	case KindArray:
		b = append(b, '[')
		for k := range v.elems {
			if k > 0 {
				b = append(b, ',')
			}
			var err error
			if b, err = v.elems[k].AppendJSON(b); err != nil {
				return nil, err
			}
		}
		return append(b, ']'), nil
	case KindRecord:
		b = append(b, '{')
		for k := range v.fields {
			if k > 0 {
				b = append(b, ',')
			}
			name, err := json.Marshal(v.fields[k].Name)
			if err != nil {
				return nil, err
			}
			b = append(append(b, name...), ':')
			if b, err = v.fields[k].Value.AppendJSON(b); err != nil {
				return nil, err
			}
		}
		return append(b, '}'), nil
	}
	return nil, fmt.Errorf("unknown value kind %d", v.kind)
}

// String implements fmt.Stringer.String.  It should only be used for logs,
// debugging, etc.
func (v *Value) String() string {
	b, err := v.AppendJSON(nil)
	if err != nil {
		return fmt.Sprintf("<%s: %s>", v.kind, err)
	}
	return string(b)
}
