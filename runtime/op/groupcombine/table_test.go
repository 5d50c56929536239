package groupcombine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taksan/jaql"
	"github.com/taksan/jaql/jcode"
)

func keysOf(it *TableIter) []string {
	var keys []string
	for it.Next() {
		keys = append(keys, it.Key().String())
	}
	return keys
}

func TestTableGroupsEqualKeys(t *testing.T) {
	tab := NewTable()
	tab.Add(jaql.NewString("b"), jaql.NewInt(1))
	tab.Add(jaql.NewString("a"), jaql.NewInt(2))
	tab.Add(jaql.NewString("b"), jaql.NewInt(3))
	tab.Add(jaql.NewInt(1), jaql.NewInt(4))
	tab.Add(jaql.NewFloat(1), jaql.NewInt(5))
	assert.Equal(t, 4, tab.NumKeys())

	it := tab.Iter()
	require.True(t, it.Next())
	assert.Equal(t, "b", it.Key().Str())
	require.Len(t, it.Values(), 2)
	assert.Equal(t, int64(1), it.Values()[0].Int())
	assert.Equal(t, int64(3), it.Values()[1].Int())
}

func TestTableOrders(t *testing.T) {
	tab := NewTable()
	for _, s := range []string{"m", "c", "x", "c", "a"} {
		tab.Add(jaql.NewString(s), jaql.Null)
	}
	assert.Equal(t, []string{`"m"`, `"c"`, `"x"`, `"a"`}, keysOf(tab.Iter()))
	assert.Equal(t, []string{`"a"`, `"c"`, `"m"`, `"x"`}, keysOf(tab.SortedIter()))
	// Sorting does not disturb the native order.
	assert.Equal(t, []string{`"m"`, `"c"`, `"x"`, `"a"`}, keysOf(tab.Iter()))
}

func TestTableAccounting(t *testing.T) {
	tab := NewTable()
	assert.Zero(t, tab.MemSize())
	tab.Add(jaql.NewString("key"), jaql.NewString("value"))
	first := tab.MemSize()
	assert.Greater(t, first, entryOverhead)
	tab.Add(jaql.NewString("key"), jaql.NewString("value"))
	second := tab.MemSize() - first
	assert.Less(t, second, first)

	tab.Reset()
	assert.Zero(t, tab.MemSize())
	assert.Zero(t, tab.NumKeys())
	assert.False(t, tab.Iter().Next())

	tab.Add(jaql.NewString("key"), jaql.NewString("value"))
	assert.Equal(t, first, tab.MemSize())
	assert.Equal(t, 1, tab.NumKeys())
}

func TestTableWriteSorted(t *testing.T) {
	tab := NewTable()
	tab.Add(jaql.NewInt(3), jaql.NewString("c"))
	tab.Add(jaql.NewInt(1), jaql.NewString("a"))
	tab.Add(jaql.NewInt(3), jaql.NewString("cc"))

	var buf bytes.Buffer
	require.NoError(t, tab.WriteSorted(&buf))

	r := jcode.NewReader(&buf)
	expect := func(s string) {
		t.Helper()
		val, err := r.Read(nil)
		require.NoError(t, err)
		assert.Equal(t, s, val.String())
	}
	count := func(n uint64) {
		t.Helper()
		u, err := r.ReadUvarint()
		require.NoError(t, err)
		assert.Equal(t, n, u)
	}
	expect("1")
	count(1)
	expect(`"a"`)
	expect("3")
	count(2)
	expect(`"c"`)
	expect(`"cc"`)
	assert.Zero(t, buf.Len())
}
