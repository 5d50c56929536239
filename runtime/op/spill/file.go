package spill

import (
	"bufio"
	"io"
	"os"

	"github.com/taksan/jaql/jqe"
	"golang.org/x/exp/slices"
)

// ChunkSource writes one sorted chunk of records.  The bytes it writes
// must be ascending by key so the Merger can interleave chunks.
type ChunkSource interface {
	WriteSorted(io.Writer) error
}

// File is an append-only store of sorted chunks.  The start offset of each
// chunk is kept in memory; the file itself carries no header, trailer or
// index, so its chunks can only be read back through the File that wrote
// them.  The underlying os.File belongs to whoever created it and is not
// closed or removed here.
type File struct {
	file    *os.File
	writer  *bufio.Writer
	pos     int64
	offsets []int64
	sealed  bool
}

// NewFile returns a File that writes chunks to f starting at f's current
// end.
func NewFile(f *os.File) (*File, error) {
	pos, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, jqe.ErrIO(err)
	}
	return &File{
		file:   f,
		writer: bufio.NewWriter(f),
		pos:    pos,
	}, nil
}

// WriteChunk records the current write position as the start of a new chunk
// and lets src write the chunk's records.
func (f *File) WriteChunk(src ChunkSource) error {
	if f.sealed {
		return jqe.ErrInvalid("spill file already opened for merging")
	}
	f.offsets = append(f.offsets, f.pos)
	if err := src.WriteSorted(&counter{f}); err != nil {
		return jqe.ErrIO(err)
	}
	return nil
}

// counter tracks the write position as bytes pass to the buffered writer.
type counter struct {
	*File
}

func (c *counter) Write(b []byte) (int, error) {
	n, err := c.writer.Write(b)
	c.pos += int64(n)
	return n, err
}

func (f *File) NumChunks() int {
	if f.sealed {
		return len(f.offsets) - 1
	}
	return len(f.offsets)
}

// Offsets returns the start offset of each chunk followed, once the file
// has been opened for merging, by the end-of-file sentinel.
func (f *File) Offsets() []int64 {
	return slices.Clone(f.offsets)
}

// Size returns the number of bytes written, including any still buffered.
func (f *File) Size() int64 {
	return f.pos
}

func (f *File) Name() string {
	return f.file.Name()
}

// seal flushes pending output and appends the end-of-file sentinel to the
// offsets, turning N chunk starts into N half-open ranges.  It may be called
// only once.
func (f *File) seal() ([]int64, error) {
	if f.sealed {
		return nil, jqe.ErrInvalid("spill file already opened for merging")
	}
	if err := f.writer.Flush(); err != nil {
		return nil, jqe.ErrIO(err)
	}
	info, err := f.file.Stat()
	if err != nil {
		return nil, jqe.ErrIO(err)
	}
	if info.Size() != f.pos {
		return nil, jqe.E(jqe.IO, "spill file %s has %d bytes, expected %d", f.file.Name(), info.Size(), f.pos)
	}
	f.sealed = true
	f.offsets = append(f.offsets, info.Size())
	return f.offsets, nil
}
