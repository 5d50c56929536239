package jcode

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/taksan/jaql"
)

// Stream is the input consumed by Reader.  *bufio.Reader satisfies it.
type Stream interface {
	io.Reader
	io.ByteReader
}

// Reader decodes values from a Stream.
type Reader struct {
	stream Stream
	name   []byte
}

// NewReader returns a Reader for r, buffering r if it cannot read
// single bytes on its own.
func NewReader(r io.Reader) *Reader {
	s, ok := r.(Stream)
	if !ok {
		s = bufio.NewReader(r)
	}
	return &Reader{stream: s}
}

// Read decodes the next value.  If reuse is non-nil, the value is decoded
// into it and its buffers are recycled; otherwise a new value is allocated.
// Read returns io.EOF only when the stream ends cleanly between values and
// io.ErrUnexpectedEOF when it ends inside one.
func (r *Reader) Read(reuse *jaql.Value) (*jaql.Value, error) {
	if reuse == nil {
		reuse = &jaql.Value{}
	}
	tag, err := r.stream.ReadByte()
	if err != nil {
		return nil, err
	}
	if err := r.decode(tag, reuse); err != nil {
		return nil, noEOF(err)
	}
	return reuse, nil
}

// ReadUvarint reads a uvarint with the same end-of-stream convention as Read.
func (r *Reader) ReadUvarint() (uint64, error) {
	return binary.ReadUvarint(r.stream)
}

func (r *Reader) decode(tag byte, val *jaql.Value) error {
	switch tag {
	case tagNull:
		val.Reset(jaql.KindNull)
	case tagFalse:
		val.SetBool(false)
	case tagTrue:
		val.SetBool(true)
	case tagInt:
		i, err := binary.ReadVarint(r.stream)
		if err != nil {
			return err
		}
		val.SetInt(i)
	case tagFloat:
		var b [8]byte
		if _, err := io.ReadFull(r.stream, b[:]); err != nil {
			return err
		}
		val.SetFloat(math.Float64frombits(binary.LittleEndian.Uint64(b[:])))
	case tagString, tagBytes:
		kind := jaql.KindString
		if tag == tagBytes {
			kind = jaql.KindBytes
		}
		n, err := r.readLength()
		if err != nil {
			return err
		}
		if _, err := io.ReadFull(r.stream, val.Buffer(kind, n)); err != nil {
			return err
		}
	case tagArray:
		n, err := r.readLength()
		if err != nil {
			return err
		}
		elems := val.GrowElements(n)
		for k := range elems {
			if err := r.decodeNext(&elems[k]); err != nil {
				return err
			}
		}
	case tagRecord:
		n, err := r.readLength()
		if err != nil {
			return err
		}
		fields := val.GrowFields(n)
		for k := range fields {
			name, err := r.readName()
			if err != nil {
				return err
			}
			fields[k].Name = name
			if err := r.decodeNext(&fields[k].Value); err != nil {
				return err
			}
		}
	default:
		return ErrBadTag
	}
	return nil
}

func (r *Reader) decodeNext(val *jaql.Value) error {
	tag, err := r.stream.ReadByte()
	if err != nil {
		return err
	}
	return r.decode(tag, val)
}

func (r *Reader) readLength() (int, error) {
	u64, err := binary.ReadUvarint(r.stream)
	if err != nil {
		return 0, err
	}
	if u64 > MaxLength {
		return 0, ErrBadLength
	}
	return int(u64), nil
}

func (r *Reader) readName() (string, error) {
	n, err := r.readLength()
	if err != nil {
		return "", err
	}
	if cap(r.name) < n {
		r.name = make([]byte, n)
	}
	r.name = r.name[:n]
	if _, err := io.ReadFull(r.stream, r.name); err != nil {
		return "", err
	}
	return string(r.name), nil
}

func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
