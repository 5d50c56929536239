package groupcombine_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taksan/jaql"
	"github.com/taksan/jaql/jio"
	"github.com/taksan/jaql/jqe"
	"github.com/taksan/jaql/jtest"
	"github.com/taksan/jaql/runtime"
	"github.com/taksan/jaql/runtime/expr/stage"
	"github.com/taksan/jaql/runtime/mock"
	"github.com/taksan/jaql/runtime/op/groupcombine"
	"go.uber.org/zap/zaptest"
)

func newContext(t *testing.T) (*runtime.Context, string) {
	dir := t.TempDir()
	rctx := runtime.NewContext(context.Background(), zaptest.NewLogger(t), dir, nil)
	t.Cleanup(func() { assert.NoError(t, rctx.Cancel()) })
	return rctx, dir
}

func pair(key, val *jaql.Value) *jaql.Value {
	return jaql.NewArray([]jaql.Value{*key, *val})
}

func intPairs(kv ...int64) jio.Reader {
	var vals []*jaql.Value
	for k := 0; k+1 < len(kv); k += 2 {
		vals = append(vals, pair(jaql.NewInt(kv[k]), jaql.NewInt(kv[k+1])))
	}
	return jio.NewArray(vals...)
}

// keyed returns agg with a final stage that tags each result with its key.
func keyed(agg *stage.Aggregate) *stage.Aggregate {
	return &stage.Aggregate{Initial: agg.Initial, Partial: agg.Partial, Final: stage.Keyed(agg.Final)}
}

func lookup(t *testing.T, name string) *stage.Aggregate {
	agg, err := stage.Lookup(name)
	require.NoError(t, err)
	return keyed(agg)
}

func run(t *testing.T, rctx *runtime.Context, input jio.Reader, agg *stage.Aggregate, conf groupcombine.Config) ([]*jaql.Value, groupcombine.Stats) {
	t.Helper()
	a, err := groupcombine.New(rctx, input, agg.Initial, agg.Partial, agg.Final, conf)
	require.NoError(t, err)
	out, err := jio.ReadAll(a)
	require.NoError(t, err)
	return out, a.Stats()
}

type result struct {
	key   int64
	value *jaql.Value
}

func results(t *testing.T, vals []*jaql.Value) []result {
	var out []result
	for _, val := range vals {
		key, err := val.Field("key")
		require.NoError(t, err)
		v, err := val.Field("value")
		require.NoError(t, err)
		out = append(out, result{key.Int(), v})
	}
	return out
}

// byKey collects results into a map and checks that each key's results
// are contiguous.
func byKey(t *testing.T, rs []result) map[int64][]int64 {
	m := make(map[int64][]int64)
	var prev *int64
	for k := range rs {
		r := rs[k]
		if prev == nil || *prev != r.key {
			_, seen := m[r.key]
			require.False(t, seen, "results for key %d are not contiguous", r.key)
		}
		m[r.key] = append(m[r.key], r.value.Int())
		prev = &rs[k].key
	}
	return m
}

var limits = []struct {
	name string
	conf groupcombine.Config
}{
	{"never", groupcombine.Config{MemoryLimit: 1 << 40, KeyLimit: 1 << 30}},
	{"default", groupcombine.DefaultConfig()},
	{"keys", groupcombine.Config{MemoryLimit: 1 << 40, KeyLimit: 4}},
	{"memory", groupcombine.Config{MemoryLimit: 2048, KeyLimit: 1 << 30}},
	{"immediate", groupcombine.Config{}},
}

func TestMatchesNaiveGroupBy(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var kv []int64
	expected := make(map[int64][]int64)
	for k := int64(0); k < 300; k++ {
		key := rng.Int63n(23) - 5
		kv = append(kv, key, k)
		expected[key] = append(expected[key], k)
	}
	for _, c := range limits {
		c := c
		t.Run(c.name, func(t *testing.T) {
			rctx, _ := newContext(t)
			out, stats := run(t, rctx, intPairs(kv...), keyed(&stage.Aggregate{
				Initial: stage.Identity,
				Partial: stage.Identity,
				Final:   stage.Identity,
			}), c.conf)
			rs := results(t, out)
			assert.Equal(t, expected, byKey(t, rs))
			assert.Equal(t, int64(300), stats.Pairs)
			if stats.Chunks > 0 {
				for k := 1; k < len(rs); k++ {
					assert.LessOrEqual(t, rs[k-1].key, rs[k].key)
				}
			}
		})
	}
}

func TestFloatKeysGroupAlikeWhetherOrNotSpilled(t *testing.T) {
	negZero := math.Copysign(0, -1)
	keys := []float64{0, negZero, 0, math.NaN(), math.Float64frombits(0x7ff0000000000001), negZero, 0}
	class := func(f float64) string {
		switch {
		case math.IsNaN(f):
			return "NaN"
		case math.Signbit(f):
			return "-0"
		}
		return "+0"
	}
	for _, c := range limits {
		c := c
		t.Run(c.name, func(t *testing.T) {
			var vals []*jaql.Value
			for _, f := range keys {
				vals = append(vals, pair(jaql.NewFloat(f), jaql.NewInt(1)))
			}
			rctx, _ := newContext(t)
			out, _ := run(t, rctx, jio.NewArray(vals...), lookup(t, "count"), c.conf)
			counts := make(map[string]int64)
			for _, val := range out {
				key, err := val.Field("key")
				require.NoError(t, err)
				v, err := val.Field("value")
				require.NoError(t, err)
				_, dup := counts[class(key.Float())]
				require.False(t, dup, "key %s split into two groups", key)
				counts[class(key.Float())] = v.Int()
			}
			assert.Equal(t, map[string]int64{"+0": 3, "-0": 2, "NaN": 2}, counts)
		})
	}
}

func TestCount(t *testing.T) {
	input := func() jio.Reader {
		return jio.NewArray(
			pair(jaql.NewInt(1), jaql.NewString("a")),
			pair(jaql.NewInt(2), jaql.NewString("b")),
			pair(jaql.NewInt(1), jaql.NewString("c")),
		)
	}
	for _, c := range limits {
		c := c
		t.Run(c.name, func(t *testing.T) {
			rctx, _ := newContext(t)
			out, _ := run(t, rctx, input(), lookup(t, "count"), c.conf)
			assert.Equal(t, map[int64][]int64{1: {2}, 2: {1}}, byKey(t, results(t, out)))
		})
	}
}

func TestPromotionRoundsAgree(t *testing.T) {
	var kv []int64
	for k := int64(0); k < 100; k++ {
		kv = append(kv, k%3, k)
	}
	rctx, _ := newContext(t)
	once, stats := run(t, rctx, intPairs(kv...), lookup(t, "sum"), groupcombine.DefaultConfig())
	assert.Zero(t, stats.Promotions)

	rctx, _ = newContext(t)
	conf := groupcombine.Config{MemoryLimit: 1024, KeyLimit: 1 << 30}
	many, stats := run(t, rctx, intPairs(kv...), lookup(t, "sum"), conf)
	assert.Greater(t, stats.Promotions, int64(1))

	assert.Equal(t, byKey(t, results(t, once)), byKey(t, results(t, many)))
}

func TestOutputPaths(t *testing.T) {
	// One key whose accumulator overflows every five values while the
	// counts promoted into the partial table stay under the limit.
	var kv []int64
	for k := int64(0); k < 12; k++ {
		kv = append(kv, 7, k)
	}
	cases := []struct {
		name   string
		conf   groupcombine.Config
		path   string
		chunks bool
	}{
		{"direct", groupcombine.DefaultConfig(), "direct", false},
		{"partial", groupcombine.Config{MemoryLimit: 600, KeyLimit: 1 << 30}, "partial", false},
		{"merged", groupcombine.Config{}, "merged", true},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			rctx, dir := newContext(t)
			out, stats := run(t, rctx, intPairs(kv...), lookup(t, "count"), c.conf)
			assert.Equal(t, map[int64][]int64{7: {12}}, byKey(t, results(t, out)))
			assert.Equal(t, 1.0, testutil.ToFloat64(rctx.Metrics.Groups.WithLabelValues(c.path)))
			files, err := filepath.Glob(filepath.Join(dir, "jaql_group_temp-*.dat"))
			require.NoError(t, err)
			if c.chunks {
				assert.Len(t, files, 1)
				assert.Positive(t, stats.Chunks)
				assert.Equal(t, float64(stats.SpillBytes), testutil.ToFloat64(rctx.Metrics.SpillBytes))
			} else {
				assert.Empty(t, files)
				assert.Zero(t, stats.Chunks)
			}
		})
	}
}

func TestImmediateSpillWritesChunkPerPair(t *testing.T) {
	rctx, _ := newContext(t)
	out, stats := run(t, rctx, intPairs(1, 10, 2, 20, 1, 11, 3, 30), lookup(t, "values"), groupcombine.Config{})
	assert.Equal(t, int64(4), stats.Chunks)
	assert.Equal(t, int64(4), stats.Promotions)
	assert.Equal(t, 4.0, testutil.ToFloat64(rctx.Metrics.Chunks))
	rs := results(t, out)
	var keys []int64
	for _, r := range rs {
		keys = append(keys, r.key)
	}
	assert.Equal(t, []int64{1, 1, 2, 3}, keys)
	assert.Equal(t, map[int64][]int64{1: {10, 11}, 2: {20}, 3: {30}}, byKey(t, rs))
}

func TestEmptyInputCreatesNoSpillFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	temp := mock.NewMockTempFileProvider(ctrl)
	temp.EXPECT().CreateTempFile(gomock.Any(), gomock.Any()).Times(0)
	rctx, _ := newContext(t)
	rctx.Temp = temp
	out, stats := run(t, rctx, jio.Empty(), lookup(t, "count"), groupcombine.Config{})
	assert.Empty(t, out)
	assert.Zero(t, stats.Chunks)
}

func TestSpillFileCreateError(t *testing.T) {
	ctrl := gomock.NewController(t)
	temp := mock.NewMockTempFileProvider(ctrl)
	temp.EXPECT().CreateTempFile("jaql_group_temp", "dat").Return(nil, errors.New("disk full")).Times(1)
	rctx, _ := newContext(t)
	rctx.Temp = temp
	agg := lookup(t, "count")
	a, err := groupcombine.New(rctx, intPairs(1, 1), agg.Initial, agg.Partial, agg.Final, groupcombine.Config{})
	require.NoError(t, err)
	_, err = a.Read()
	assert.True(t, jqe.IsKind(err, jqe.IO))
	assert.ErrorContains(t, err, "disk full")
}

type countingReader struct {
	jio.Reader
	reads int
}

func (c *countingReader) Read() (*jaql.Value, error) {
	c.reads++
	return c.Reader.Read()
}

func TestArityCheckedBeforeInput(t *testing.T) {
	rctx, _ := newContext(t)
	input := &countingReader{Reader: intPairs(1, 1)}
	three := &stage.Func{Name: "three", Params: 3, Fn: func(*jaql.Value, jio.Reader) (jio.Reader, error) {
		return jio.Empty(), nil
	}}
	_, err := groupcombine.New(rctx, input, stage.Identity, three, stage.Identity, groupcombine.DefaultConfig())
	assert.True(t, jqe.IsKind(err, jqe.Invalid))
	assert.ErrorContains(t, err, "function must have two parameters")
	assert.Zero(t, input.reads)
}

func TestNegativeLimits(t *testing.T) {
	rctx, _ := newContext(t)
	_, err := groupcombine.New(rctx, jio.Empty(), stage.Identity, stage.Identity, stage.Identity, groupcombine.Config{KeyLimit: -1})
	assert.True(t, jqe.IsKind(err, jqe.Invalid))
}

func TestStageErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	failing := &stage.Func{Name: "failing", Params: 2, Fn: func(*jaql.Value, jio.Reader) (jio.Reader, error) {
		return nil, boom
	}}
	for _, c := range limits {
		c := c
		t.Run(c.name, func(t *testing.T) {
			rctx, _ := newContext(t)
			a, err := groupcombine.New(rctx, intPairs(1, 1, 2, 2), failing, stage.Identity, stage.Identity, c.conf)
			require.NoError(t, err)
			_, err = a.Read()
			assert.Same(t, boom, err)
			_, err = a.Read()
			assert.Same(t, boom, err)
		})
	}
}

func TestInputMustBePairs(t *testing.T) {
	bad := []*jaql.Value{
		jaql.NewInt(1),
		jaql.NewArray([]jaql.Value{*jaql.NewInt(1)}),
		jaql.NewArray([]jaql.Value{*jaql.NewInt(1), *jaql.NewInt(2), *jaql.NewInt(3)}),
	}
	for _, val := range bad {
		val := val
		t.Run(val.String(), func(t *testing.T) {
			rctx, _ := newContext(t)
			a, err := groupcombine.New(rctx, jio.Single(val), stage.Identity, stage.Identity, stage.Identity, groupcombine.DefaultConfig())
			require.NoError(t, err)
			_, err = a.Read()
			assert.True(t, jqe.IsKind(err, jqe.Invalid))
		})
	}
}

func TestCanceled(t *testing.T) {
	rctx, _ := newContext(t)
	a, err := groupcombine.New(rctx, intPairs(1, 1), stage.Identity, stage.Identity, stage.Identity, groupcombine.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, rctx.Cancel())
	_, err = a.Read()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSpillFilesRemovedOnCancel(t *testing.T) {
	rctx, dir := newContext(t)
	out, stats := run(t, rctx, intPairs(1, 1, 2, 2, 3, 3), lookup(t, "sum"), groupcombine.Config{})
	assert.Len(t, out, 3)
	assert.Positive(t, stats.Chunks)
	require.NoError(t, rctx.Cancel())
	files, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestStringKeys(t *testing.T) {
	var vals []*jaql.Value
	words := []string{"pear", "apple", "fig", "apple", "kiwi", "fig", "apple"}
	for k, w := range words {
		vals = append(vals, pair(jaql.NewString(w), jaql.NewInt(int64(k))))
	}
	rctx, _ := newContext(t)
	out, _ := run(t, rctx, jio.NewArray(vals...), lookup(t, "count"), groupcombine.Config{MemoryLimit: 1 << 40, KeyLimit: 2})
	var got []string
	for _, val := range out {
		got = append(got, val.String())
	}
	expected := []string{
		`{"key":"apple","value":3}`,
		`{"key":"fig","value":2}`,
		`{"key":"kiwi","value":1}`,
		`{"key":"pear","value":1}`,
	}
	assert.Equal(t, expected, got, fmt.Sprint(got))
}

func TestGroupCombineZTests(t *testing.T) {
	jtest.Run(t, "ztests")
}
