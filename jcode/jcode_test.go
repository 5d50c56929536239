package jcode_test

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taksan/jaql"
	"github.com/taksan/jaql/jcode"
)

func sampleValues() []*jaql.Value {
	return []*jaql.Value{
		jaql.Null,
		jaql.True,
		jaql.False,
		jaql.NewInt(0),
		jaql.NewInt(-1),
		jaql.NewInt(math.MaxInt64),
		jaql.NewFloat(3.5),
		jaql.NewString(""),
		jaql.NewString("héllo"),
		jaql.NewBytes([]byte{0, 1, 2}),
		jaql.NewArray([]jaql.Value{*jaql.NewInt(1), *jaql.NewString("x")}),
		jaql.NewRecord([]jaql.Field{
			{Name: "k", Value: *jaql.NewInt(1)},
			{Name: "v", Value: *jaql.NewArray(nil)},
		}),
	}
}

func TestStreamOfValues(t *testing.T) {
	var buf bytes.Buffer
	w := jcode.NewWriter(&buf)
	vals := sampleValues()
	for _, val := range vals {
		require.NoError(t, w.Write(val))
	}
	require.NoError(t, w.WriteUvarint(300))
	r := jcode.NewReader(&buf)
	for _, expected := range vals {
		val, err := r.Read(nil)
		require.NoError(t, err)
		assert.True(t, jaql.Equal(expected, val), "expected %s got %s", expected, val)
	}
	n, err := r.ReadUvarint()
	require.NoError(t, err)
	assert.EqualValues(t, 300, n)
	_, err = r.Read(nil)
	assert.Equal(t, io.EOF, err)
}

func TestReadReusesTarget(t *testing.T) {
	var buf bytes.Buffer
	w := jcode.NewWriter(&buf)
	require.NoError(t, w.Write(jaql.NewString("first value")))
	require.NoError(t, w.Write(jaql.NewString("second")))
	r := jcode.NewReader(&buf)
	var target jaql.Value
	val, err := r.Read(&target)
	require.NoError(t, err)
	assert.Same(t, &target, val)
	first := &target.Bytes()[0]
	_, err = r.Read(&target)
	require.NoError(t, err)
	assert.Equal(t, "second", target.Str())
	assert.Same(t, first, &target.Bytes()[0])
}

func TestTruncated(t *testing.T) {
	b := jcode.Append(nil, jaql.NewRecord([]jaql.Field{{Name: "name", Value: *jaql.NewString("value")}}))
	for n := 1; n < len(b); n++ {
		_, err := jcode.NewReader(bytes.NewReader(b[:n])).Read(nil)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF, "truncated at %d", n)
	}
}

func TestBadInput(t *testing.T) {
	_, err := jcode.NewReader(bytes.NewReader([]byte{0xff})).Read(nil)
	assert.ErrorIs(t, err, jcode.ErrBadTag)
	b := jcode.AppendUvarint([]byte{5}, jcode.MaxLength+1)
	_, err = jcode.NewReader(bytes.NewReader(b)).Read(nil)
	assert.ErrorIs(t, err, jcode.ErrBadLength)
}

func TestSizeOfUvarint(t *testing.T) {
	for _, u := range []uint64{0, 127, 128, 1 << 20, math.MaxUint64} {
		assert.Len(t, jcode.AppendUvarint(nil, u), jcode.SizeOfUvarint(u))
	}
}

func TestEqualFloatsEncodeAlike(t *testing.T) {
	quiet := jaql.NewFloat(math.NaN())
	payload := jaql.NewFloat(math.Float64frombits(0x7ff0000000000001))
	require.Equal(t, 0, jaql.Compare(quiet, payload))
	assert.Equal(t, jcode.Append(nil, quiet), jcode.Append(nil, payload))

	negZero := jaql.NewFloat(math.Copysign(0, -1))
	require.NotEqual(t, 0, jaql.Compare(negZero, jaql.NewFloat(0)))
	assert.NotEqual(t, jcode.Append(nil, negZero), jcode.Append(nil, jaql.NewFloat(0)))
}
