package jcode

import (
	"io"

	"github.com/taksan/jaql"
)

// Writer encodes values onto an io.Writer.  Callers wanting fewer syscalls
// should hand it a buffered writer.
type Writer struct {
	writer  io.Writer
	scratch []byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{writer: w}
}

func (w *Writer) Write(val *jaql.Value) error {
	w.scratch = Append(w.scratch[:0], val)
	_, err := w.writer.Write(w.scratch)
	return err
}

func (w *Writer) WriteUvarint(u64 uint64) error {
	w.scratch = AppendUvarint(w.scratch[:0], u64)
	_, err := w.writer.Write(w.scratch)
	return err
}
