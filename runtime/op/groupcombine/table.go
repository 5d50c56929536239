package groupcombine

import (
	"io"

	"github.com/taksan/jaql"
	"github.com/taksan/jaql/jcode"
	"golang.org/x/exp/slices"
)

// entryOverhead approximates the bookkeeping held per key beyond the key and
// values themselves (map slot, entry struct, slice headers).
const entryOverhead = 96

// Table is a multimap from keys to the ordered list of values added under
// them.  It tracks a rough estimate of its memory footprint and the number
// of distinct keys so the caller can decide when to flush it.  Keys are
// located by their jcode encoding, so keys that compare equal share an entry.
type Table struct {
	index   map[string]int
	entries []entry
	memSize int
	keyBuf  []byte
}

type entry struct {
	key  *jaql.Value
	vals []*jaql.Value
}

func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// Add appends val to the list for key.  The table keeps the pointers it is
// given, so callers must not reuse key or val afterward.
func (t *Table) Add(key, val *jaql.Value) {
	t.keyBuf = jcode.Append(t.keyBuf[:0], key)
	k, ok := t.index[string(t.keyBuf)]
	if !ok {
		k = len(t.entries)
		t.index[string(t.keyBuf)] = k
		t.entries = append(t.entries, entry{key: key})
		t.memSize += entryOverhead + len(t.keyBuf) + key.MemSize()
	}
	t.entries[k].vals = append(t.entries[k].vals, val)
	t.memSize += 8 + val.MemSize()
}

// MemSize returns the estimated number of bytes held by the table.
func (t *Table) MemSize() int {
	return t.memSize
}

func (t *Table) NumKeys() int {
	return len(t.entries)
}

// Reset drops all entries and zeroes the accounting.  The table may be
// reused afterward.
func (t *Table) Reset() {
	for k := range t.entries {
		t.entries[k] = entry{}
	}
	t.entries = t.entries[:0]
	t.index = make(map[string]int)
	t.memSize = 0
}

// Iter returns an iterator over the table in its native order, which is the
// order in which keys were first added.  The table must not be modified
// while the iterator is in use.
func (t *Table) Iter() *TableIter {
	return &TableIter{entries: t.entries}
}

// SortedIter returns an iterator over the table in ascending key order.
func (t *Table) SortedIter() *TableIter {
	sorted := slices.Clone(t.entries)
	slices.SortFunc(sorted, func(a, b entry) bool {
		return jaql.Compare(a.key, b.key) < 0
	})
	return &TableIter{entries: sorted}
}

// WriteSorted writes the table to w in ascending key order as a sequence of
// records, each the key, a uvarint count of values, and the values.  No
// header or trailer surrounds the records.
func (t *Table) WriteSorted(w io.Writer) error {
	zw := jcode.NewWriter(w)
	it := t.SortedIter()
	for it.Next() {
		if err := zw.Write(it.Key()); err != nil {
			return err
		}
		vals := it.Values()
		if err := zw.WriteUvarint(uint64(len(vals))); err != nil {
			return err
		}
		for _, val := range vals {
			if err := zw.Write(val); err != nil {
				return err
			}
		}
	}
	return nil
}

type TableIter struct {
	entries []entry
	cur     entry
}

// Next advances the iterator and reports whether an entry is available.
func (t *TableIter) Next() bool {
	if len(t.entries) == 0 {
		t.cur = entry{}
		return false
	}
	t.cur = t.entries[0]
	t.entries = t.entries[1:]
	return true
}

func (t *TableIter) Key() *jaql.Value {
	return t.cur.key
}

func (t *TableIter) Values() []*jaql.Value {
	return t.cur.vals
}
