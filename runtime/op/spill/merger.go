package spill

import (
	"bufio"
	"container/heap"
	"errors"
	"io"
	"os"

	"github.com/taksan/jaql"
	"github.com/taksan/jaql/jcode"
	"github.com/taksan/jaql/jqe"
)

const readBufferSize = 16 * 1024

// Merger reads the chunks of a File back as one sequence of groups in
// ascending key order.  Each chunk has a cursor positioned at its current
// record; cursors live in an arena indexed by chunk number and a heap of
// chunk numbers orders them by current key, ties going to the earlier chunk.
// Values for one key may come from several chunks and are delivered as a
// single group.
//
// Iteration is two-level: NextKey moves to the next group and NextValue (or
// Read) returns that group's values until it returns nil.
type Merger struct {
	reader  *chunkReader
	decoder *jcode.Reader
	cursors []cursor
	queue   queue
	key     jaql.Value
	inGroup bool
	err     error
}

type cursor struct {
	// key is the key of the current record and is reused as a decode
	// target as the cursor advances.
	key       jaql.Value
	remaining uint64
	pos       int64
	end       int64
}

// NewMerger seals f and positions a cursor at the first record of each of
// its chunks.  No more chunks may be written to f afterward.
func NewMerger(f *File) (*Merger, error) {
	offsets, err := f.seal()
	if err != nil {
		return nil, err
	}
	reader := newChunkReader(f.file)
	m := &Merger{
		reader:  reader,
		decoder: jcode.NewReader(reader),
		cursors: make([]cursor, len(offsets)-1),
	}
	m.queue.cursors = m.cursors
	for k := range m.cursors {
		c := &m.cursors[k]
		c.pos = offsets[k]
		c.end = offsets[k+1]
		ok, err := m.advance(k)
		if err != nil {
			return nil, err
		}
		if ok {
			m.queue.ids = append(m.queue.ids, k)
		}
	}
	heap.Init(&m.queue)
	return m, nil
}

// NextKey moves to the next group and returns its key, or nil when all
// chunks are exhausted.  Values of the current group that were not read are
// skipped.  The returned key is owned by the Merger and remains valid until
// the next call to NextKey.
func (m *Merger) NextKey() (*jaql.Value, error) {
	for m.inGroup {
		val, err := m.NextValue()
		if err != nil {
			return nil, err
		}
		if val == nil {
			break
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.queue.Len() == 0 {
		return nil, nil
	}
	m.key.CopyFrom(&m.cursors[m.queue.ids[0]].key)
	m.inGroup = true
	return &m.key, nil
}

// NextValue returns the next value of the current group, or nil when the
// group is complete.
func (m *Merger) NextValue() (*jaql.Value, error) {
	if m.err != nil {
		return nil, m.err
	}
	if !m.inGroup {
		return nil, nil
	}
	id := m.queue.ids[0]
	c := &m.cursors[id]
	if err := m.reader.seek(c.pos, c.end); err != nil {
		return nil, m.fail(jqe.ErrIO(err))
	}
	val, err := m.decoder.Read(nil)
	if err != nil {
		return nil, m.fail(corrupt(id, c.pos, err))
	}
	c.pos = m.reader.pos
	c.remaining--
	if c.remaining == 0 {
		ok, err := m.advance(id)
		if err != nil {
			return nil, m.fail(err)
		}
		if ok {
			heap.Fix(&m.queue, 0)
		} else {
			heap.Pop(&m.queue)
		}
		if m.queue.Len() == 0 || !jaql.Equal(&m.cursors[m.queue.ids[0]].key, &m.key) {
			m.inGroup = false
		}
	}
	return val, nil
}

// Read implements jio.Reader over the values of the current group.
func (m *Merger) Read() (*jaql.Value, error) {
	return m.NextValue()
}

// advance decodes the next record header of chunk id.  It returns false
// when the chunk is exhausted.
func (m *Merger) advance(id int) (bool, error) {
	c := &m.cursors[id]
	if c.pos >= c.end {
		c.remaining = 0
		return false, nil
	}
	if err := m.reader.seek(c.pos, c.end); err != nil {
		return false, jqe.ErrIO(err)
	}
	if _, err := m.decoder.Read(&c.key); err != nil {
		return false, corrupt(id, c.pos, err)
	}
	count, err := m.decoder.ReadUvarint()
	if err != nil {
		return false, corrupt(id, c.pos, err)
	}
	if count == 0 {
		return false, jqe.ErrCorrupt("spill chunk %d: record at offset %d has no values", id, c.pos)
	}
	c.remaining = count
	c.pos = m.reader.pos
	return true, nil
}

func (m *Merger) fail(err error) error {
	m.err = err
	m.inGroup = false
	return err
}

func corrupt(id int, pos int64, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return jqe.ErrCorrupt("spill chunk %d: record at offset %d: %w", id, pos, err)
}

// queue is a min-heap of chunk numbers ordered by the current key of each
// chunk's cursor.
type queue struct {
	ids     []int
	cursors []cursor
}

func (q *queue) Len() int { return len(q.ids) }

func (q *queue) Less(i, j int) bool {
	a, b := q.ids[i], q.ids[j]
	if c := jaql.Compare(&q.cursors[a].key, &q.cursors[b].key); c != 0 {
		return c < 0
	}
	return a < b
}

func (q *queue) Swap(i, j int) { q.ids[i], q.ids[j] = q.ids[j], q.ids[i] }

func (q *queue) Push(x interface{}) {
	q.ids = append(q.ids, x.(int))
}

func (q *queue) Pop() interface{} {
	old := q.ids
	n := len(old)
	x := old[n-1]
	q.ids = old[0 : n-1]
	return x
}

// chunkReader is a buffered reader over the spill file that knows its
// position and refuses to read past the end of the chunk being decoded.
type chunkReader struct {
	file   *os.File
	buf    *bufio.Reader
	pos    int64
	limit  int64
	primed bool
}

func newChunkReader(f *os.File) *chunkReader {
	return &chunkReader{
		file: f,
		buf:  bufio.NewReaderSize(f, readBufferSize),
	}
}

// seek positions the reader at off and limits reads to end.  Short forward
// moves within the buffered data avoid a system call.
func (r *chunkReader) seek(off, end int64) error {
	r.limit = end
	if r.primed && off >= r.pos && off-r.pos <= int64(r.buf.Buffered()) {
		_, err := r.buf.Discard(int(off - r.pos))
		r.pos = off
		return err
	}
	if _, err := r.file.Seek(off, io.SeekStart); err != nil {
		return err
	}
	r.buf.Reset(r.file)
	r.pos = off
	r.primed = true
	return nil
}

func (r *chunkReader) ReadByte() (byte, error) {
	if r.pos >= r.limit {
		return 0, io.EOF
	}
	b, err := r.buf.ReadByte()
	if err == nil {
		r.pos++
	}
	return b, err
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.pos >= r.limit {
		return 0, io.EOF
	}
	if max := r.limit - r.pos; int64(len(p)) > max {
		p = p[:max]
	}
	n, err := r.buf.Read(p)
	r.pos += int64(n)
	return n, err
}
