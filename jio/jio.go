package jio

import (
	"io"

	"github.com/taksan/jaql"
	"golang.org/x/exp/slices"
)

// Reader wraps the Read method.
//
// Read returns the next value and a nil error, a nil value and the next
// error, or a nil value and nil error to indicate that no values remain.
//
// Read never returns a non-nil value and non-nil error together, and it never
// returns io.EOF.
type Reader interface {
	Read() (*jaql.Value, error)
}

type Writer interface {
	Write(*jaql.Value) error
}

type ReadCloser interface {
	Reader
	io.Closer
}

type WriteCloser interface {
	Writer
	io.Closer
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// NopCloser returns a WriteCloser with a no-op Close method wrapping
// the provided Writer w.
func NopCloser(w io.Writer) io.WriteCloser {
	return nopCloser{w}
}

func NewReadCloser(r Reader, c io.Closer) ReadCloser {
	return extReadCloser{r, c}
}

type extReadCloser struct {
	Reader
	io.Closer
}

// ConcatReader returns a Reader that is the logical concatenation of readers,
// which are read sequentially.  Its Read method returns any non-nil error
// returned by a reader and returns end of stream after all readers have
// returned end of stream.
func ConcatReader(readers ...Reader) Reader {
	if len(readers) == 1 {
		return readers[0]
	}
	return &concatReader{slices.Clone(readers)}
}

type concatReader struct {
	readers []Reader
}

func (c *concatReader) Read() (*jaql.Value, error) {
	for len(c.readers) > 0 {
		val, err := c.readers[0].Read()
		if val != nil || err != nil {
			return val, err
		}
		c.readers = c.readers[1:]
	}
	return nil, nil
}

// Array is a Reader over a slice of values.
type Array struct {
	vals []*jaql.Value
}

func NewArray(vals ...*jaql.Value) *Array {
	return &Array{vals: vals}
}

func (a *Array) Read() (*jaql.Value, error) {
	if len(a.vals) == 0 {
		return nil, nil
	}
	val := a.vals[0]
	a.vals = a.vals[1:]
	return val, nil
}

// Single returns a Reader that yields val once.
func Single(val *jaql.Value) Reader {
	return NewArray(val)
}

// Empty returns a Reader with no values.
func Empty() Reader {
	return NewArray()
}

// ReadAll drains r into a slice.  Values are copied since readers may reuse
// their buffers.
func ReadAll(r Reader) ([]*jaql.Value, error) {
	var vals []*jaql.Value
	for {
		val, err := r.Read()
		if err != nil {
			return nil, err
		}
		if val == nil {
			return vals, nil
		}
		vals = append(vals, val.Copy())
	}
}

// Copy copies values from r to w until r is exhausted or an error occurs.
func Copy(w Writer, r Reader) error {
	for {
		val, err := r.Read()
		if err != nil || val == nil {
			return err
		}
		if err := w.Write(val); err != nil {
			return err
		}
	}
}
