package jsonio

import (
	"bufio"
	"io"

	"github.com/taksan/jaql"
)

// Writer writes values as newline-delimited JSON.
type Writer struct {
	closer io.Closer
	writer *bufio.Writer
	buf    []byte
}

func NewWriter(w io.WriteCloser) *Writer {
	return &Writer{
		closer: w,
		writer: bufio.NewWriter(w),
	}
}

func (w *Writer) Write(val *jaql.Value) error {
	var err error
	w.buf, err = val.AppendJSON(w.buf[:0])
	if err != nil {
		return err
	}
	w.buf = append(w.buf, '\n')
	_, err = w.writer.Write(w.buf)
	return err
}

func (w *Writer) Close() error {
	err := w.writer.Flush()
	if closeErr := w.closer.Close(); err == nil {
		err = closeErr
	}
	return err
}
